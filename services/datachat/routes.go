// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datachat

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the datachat endpoints on a router group.
//
// Description:
//
//	Expected to be called with the versioned API group, yielding:
//	  POST <group>/datachat/chat
//	  GET  <group>/datachat/health
//	  GET  <group>/datachat/ready
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	grp := rg.Group("/datachat")
	{
		grp.POST("/chat", h.HandleChat)
		grp.GET("/health", h.HandleHealth)
		grp.GET("/ready", h.HandleReady)
	}
}
