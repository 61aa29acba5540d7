// Package apidocs registers the OpenAPI document for the REST API with swag.
// Regenerate with: swag init -g pkg/api/api.go -o internal/apidocs
package apidocs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/transcribe-chunk": {
            "post": {
                "description": "Converts, transcribes and stores one recorded chunk for a session.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["Chunks"],
                "summary": "Transcribe an audio chunk",
                "parameters": [
                    {"type": "file", "description": "Audio chunk (webm, wav, mp3, ogg, m4a)", "name": "audio", "in": "formData", "required": true},
                    {"type": "integer", "description": "Zero-based chunk index (default 0)", "name": "chunkIndex", "in": "formData"},
                    {"type": "string", "description": "Session id", "name": "sessionId", "in": "formData", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.transcribeResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/feedback": {
            "post": {
                "description": "Assembles the session transcript, runs the analyses and returns the fused score. The session's chunks are cleared.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Feedback"],
                "summary": "Finalize a session",
                "parameters": [
                    {"description": "Session and audience metrics", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.feedbackRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.feedbackResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/sessions": {
            "get": {
                "description": "Sessions that currently hold transcript chunks.",
                "produces": ["application/json"],
                "tags": ["Sessions"],
                "summary": "List sessions",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.sessionListResponse"}}
                }
            }
        },
        "/sessions/{id}": {
            "get": {
                "description": "Chunk count and control-plane state for one session.",
                "produces": ["application/json"],
                "tags": ["Sessions"],
                "summary": "Get session status",
                "parameters": [{"type": "string", "description": "Session id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/session.Status"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            },
            "delete": {
                "description": "Discards every stored chunk for the session without producing a report.",
                "produces": ["application/json"],
                "tags": ["Sessions"],
                "summary": "Reset a session",
                "parameters": [{"type": "string", "description": "Session id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.resetResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/api/v1/audit/events": {
            "get": {
                "description": "Returns recent session events, newest first, with optional filtering.",
                "produces": ["application/json"],
                "tags": ["Audit"],
                "summary": "List audit events",
                "parameters": [
                    {"type": "string", "description": "Filter by session id", "name": "session_id", "in": "query"},
                    {"type": "string", "description": "Filter by event kind", "name": "kind", "in": "query"},
                    {"type": "boolean", "description": "Filter by success/failure", "name": "success", "in": "query"},
                    {"type": "integer", "description": "Maximum events (default 100, max 1000)", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "Events to skip", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.auditEventResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.errorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "api.transcribeResponse": {
            "type": "object",
            "properties": {
                "chunkIndex": {"type": "integer"},
                "text": {"type": "string"},
                "success": {"type": "boolean"},
                "duplicate": {"type": "boolean"}
            }
        },
        "api.feedbackRequest": {
            "type": "object",
            "properties": {
                "sessionId": {"type": "string"},
                "trend": {"type": "string"},
                "faceMetrics": {
                    "type": "object",
                    "properties": {
                        "avgCuriosity": {"type": "number"},
                        "avgAttention": {"type": "number"},
                        "avgVibe": {"type": "number"},
                        "trend": {"type": "string", "enum": ["improving", "stable", "declining"]}
                    }
                }
            }
        },
        "api.feedbackResponse": {
            "type": "object",
            "properties": {
                "sessionId": {"type": "string"},
                "score": {"type": "integer"},
                "breakdown": {"$ref": "#/definitions/scoring.Breakdown"},
                "feedback": {"type": "string"},
                "transcript": {"type": "string"},
                "taggedTranscript": {"type": "string"},
                "segments": {"type": "array", "items": {"$ref": "#/definitions/transcript.Segment"}},
                "questionCount": {"type": "integer"},
                "questionQuality": {"type": "number"},
                "insights": {"type": "array", "items": {"type": "string"}},
                "trend": {"type": "string"},
                "judgeScore": {"type": "integer"},
                "chunkCount": {"type": "integer"},
                "degraded": {"type": "array", "items": {"type": "string"}},
                "success": {"type": "boolean"}
            }
        },
        "api.sessionListResponse": {
            "type": "object",
            "properties": {
                "sessions": {"type": "array", "items": {"$ref": "#/definitions/transcript.SessionInfo"}},
                "count": {"type": "integer"}
            }
        },
        "api.resetResponse": {
            "type": "object",
            "properties": {
                "sessionId": {"type": "string"},
                "cleared": {"type": "boolean"}
            }
        },
        "api.auditEventResponse": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"type": "object"}},
                "count": {"type": "integer"}
            }
        },
        "scoring.Breakdown": {
            "type": "object",
            "properties": {
                "face": {"type": "number"},
                "question": {"type": "number"},
                "transcript": {"type": "number"},
                "trend": {"type": "number"},
                "raw": {"type": "number"},
                "final": {"type": "number"},
                "rounded": {"type": "integer"},
                "charCount": {"type": "integer"},
                "wordCount": {"type": "integer"}
            }
        },
        "transcript.Segment": {
            "type": "object",
            "properties": {
                "start": {"type": "number"},
                "end": {"type": "number"},
                "text": {"type": "string"}
            }
        },
        "transcript.SessionInfo": {
            "type": "object",
            "properties": {
                "sessionId": {"type": "string"},
                "chunkCount": {"type": "integer"},
                "lastIngestAt": {"type": "string"}
            }
        },
        "session.Status": {
            "type": "object",
            "properties": {
                "sessionId": {"type": "string"},
                "chunkCount": {"type": "integer"},
                "lastIngestAt": {"type": "string"},
                "state": {"type": "string", "enum": ["no_presenter", "active"]},
                "connections": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "talkback API",
	Description:      "Chunked transcription and presentation feedback.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
