package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus Timetable API",
        "description": "Asynchronous constraint-based course timetabling service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Scheduling", "description": "Asynchronous timetable generation"},
        {"name": "Calendar", "description": "Holiday calendar and conflict checks"}
    ],
    "paths": {
        "/scheduling/auto": {
            "post": {
                "tags": ["Scheduling"],
                "summary": "Submit an automatic scheduling task",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/SchedulingRequest"}}
                ],
                "responses": {
                    "200": {"description": "Task accepted", "schema": {"$ref": "#/definitions/Envelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/Envelope"}},
                    "401": {"description": "Missing or invalid token"},
                    "503": {"description": "Scheduling queue unavailable"}
                }
            }
        },
        "/scheduling/tasks": {
            "get": {
                "tags": ["Scheduling"],
                "summary": "List scheduling task ids",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/scheduling/tasks/{task_id}": {
            "get": {
                "tags": ["Scheduling"],
                "summary": "Get the status of a scheduling task",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "task_id", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "Unknown task id"}
                }
            }
        },
        "/scheduling/holiday-check": {
            "post": {
                "tags": ["Calendar"],
                "summary": "Check candidate slots against the holiday calendar",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/HolidayCheckRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/scheduling/holidays": {
            "get": {
                "tags": ["Calendar"],
                "summary": "List holidays inside a date range",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "from", "type": "string", "required": true},
                    {"in": "query", "name": "to", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        }
    },
    "definitions": {
        "SchedulingRequest": {
            "type": "object",
            "properties": {
                "semester_id": {"type": "string"},
                "department_id": {"type": "string"},
                "semester_start_date": {"type": "string", "example": "2026-09-07"},
                "strategy": {"type": "string", "enum": ["OPTIMAL", "BALANCED", "QUICK"]},
                "constraints": {"type": "object"},
                "priority_settings": {"type": "object"},
                "time_preferences": {"type": "object"},
                "scope": {"type": "object"}
            }
        },
        "HolidayCheckRequest": {
            "type": "object",
            "properties": {
                "semester_start_date": {"type": "string"},
                "slots": {"type": "array", "items": {"type": "object"}}
            }
        },
        "Envelope": {
            "type": "object",
            "properties": {
                "output": {"type": "string", "example": "Success"},
                "data": {"type": "object"},
                "error_message": {"type": "string"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
