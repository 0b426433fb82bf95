// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/EduGuardAI/EduGuard/services/orchestrator"
	"github.com/EduGuardAI/EduGuard/services/orchestrator/datatypes"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tutorTracer = otel.Tracer("eduguard.orchestrator.handlers")

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleTutorRequest runs one student query through the tutoring
// pipeline and returns the full assessed response.
func HandleTutorRequest(orch *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tutorTracer.Start(c.Request.Context(), "HandleTutorRequest")
		defer span.End()

		var request datatypes.TutorRequest
		if err := c.BindJSON(&request); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to bind tutor request JSON", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		resp, err := orch.Handle(ctx, &request)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Tutoring pipeline failed", "id", request.Id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Tutoring pipeline failed"})
			return
		}

		span.SetAttributes(
			attribute.String("request.id", resp.Id),
			attribute.String("risk.level", resp.RiskLevel),
			attribute.Bool("response.crisis", resp.Crisis),
		)
		c.JSON(http.StatusOK, resp)
	}
}
