// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package flow

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"sflowhdr/common/document"
	"sflowhdr/inlet/flow/decoder/sflow"
)

func (c *Component) recentFlowsHandlerFunc(gc *gin.Context) {
	recent := c.recentFlows()
	result := make([]gin.H, 0, len(recent))
	for _, msg := range recent {
		doc, err := document.ExtJSON(msg.Document)
		if err != nil {
			gc.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
			return
		}
		result = append(result, gin.H{
			"time_received": msg.TimeReceived.UTC(),
			"exporter":      msg.Exporter.Unmap().String(),
			"protocol":      msg.Protocol,
			"document":      json.RawMessage(doc),
		})
	}
	gc.JSON(http.StatusOK, gin.H{"flows": result})
}

func (c *Component) decodeHandlerFunc(gc *gin.Context) {
	if gc.ContentType() != "application/octet-stream" {
		gc.JSON(http.StatusUnsupportedMediaType, gin.H{"message": "Expected application/octet-stream."})
		return
	}
	payload, err := gc.GetRawData()
	if err != nil {
		gc.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	h, err := sflow.DecodeSampledHeader(payload)
	if err != nil {
		gc.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	encoded, err := sflow.EncodeDocument(h)
	if err != nil {
		gc.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	doc, err := document.ExtJSON(encoded)
	if err != nil {
		gc.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	gc.Data(http.StatusOK, "application/json; charset=utf-8", doc)
}
