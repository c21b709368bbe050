// Package docs registers the OpenAPI description served under /swagger/.
package docs

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
        "/api/lifecycle/v1/families": {
            "get": {
                "produces": ["application/json"],
                "tags": ["families"],
                "summary": "List document families and their state graphs",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ListFamiliesResponse"}}
                }
            }
        },
        "/api/lifecycle/v1/families/{family}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["families"],
                "summary": "Describe one family",
                "parameters": [
                    {"type": "string", "name": "family", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/FamilyDTO"}},
                    "404": {"description": "Unknown family", "schema": {"$ref": "#/definitions/Problem"}}
                }
            }
        },
        "/api/lifecycle/v1/families/{family}/graph": {
            "get": {
                "produces": ["text/plain"],
                "tags": ["families"],
                "summary": "Render the family state graph as a Mermaid diagram",
                "parameters": [
                    {"type": "string", "name": "family", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Mermaid stateDiagram-v2 source"},
                    "404": {"description": "Unknown family", "schema": {"$ref": "#/definitions/Problem"}}
                }
            }
        },
        "/api/lifecycle/v1/documents": {
            "get": {
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "List documents",
                "parameters": [
                    {"type": "string", "name": "family", "in": "query"},
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "integer", "name": "year", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ListDocumentsResponse"}},
                    "400": {"description": "Invalid filter", "schema": {"$ref": "#/definitions/Problem"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "Create a document with the next sequence id of its family and year",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header"},
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateDocumentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/CreateDocumentResponse"}},
                    "200": {"description": "Idempotent replay", "schema": {"$ref": "#/definitions/CreateDocumentResponse"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/Problem"}},
                    "409": {"description": "Idempotency key reused with a different request", "schema": {"$ref": "#/definitions/Problem"}},
                    "503": {"description": "Sequence allocation failed", "schema": {"$ref": "#/definitions/Problem"}}
                }
            }
        },
        "/api/lifecycle/v1/documents/{reference}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "Get a document by id or sequence id",
                "parameters": [
                    {"type": "string", "name": "reference", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/GetDocumentResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/Problem"}}
                }
            }
        },
        "/api/lifecycle/v1/documents/{reference}/transitions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "List the audit trail of a document, oldest first",
                "parameters": [
                    {"type": "string", "name": "reference", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ListTransitionsResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/Problem"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "Move a document to a new state",
                "parameters": [
                    {"type": "string", "name": "reference", "in": "path", "required": true},
                    {"type": "string", "name": "X-User-Id", "in": "header"},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TransitionDocumentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/TransitionDocumentResponse"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/Problem"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/Problem"}},
                    "409": {"description": "Document changed since it was read", "schema": {"$ref": "#/definitions/Problem"}},
                    "422": {"description": "Transition not allowed by the family graph", "schema": {"$ref": "#/definitions/Problem"}}
                }
            }
        }
    },
    "definitions": {
        "Problem": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "title": {"type": "string"},
                "status": {"type": "integer"},
                "detail": {"type": "string"},
                "instance": {"type": "string"}
            }
        },
        "CreateDocumentRequest": {
            "type": "object",
            "required": ["family", "year"],
            "properties": {
                "family": {"type": "string", "example": "CONTRACT"},
                "year": {"type": "integer", "example": 2025},
                "payload": {"type": "object"},
                "created_by": {"type": "string"}
            }
        },
        "CreateDocumentResponse": {
            "type": "object",
            "properties": {
                "document": {"$ref": "#/definitions/DocumentDTO"},
                "replayed": {"type": "boolean"}
            }
        },
        "TransitionDocumentRequest": {
            "type": "object",
            "required": ["target_state"],
            "properties": {
                "target_state": {"type": "string", "example": "pending_review"},
                "actor": {"type": "string"},
                "comment": {"type": "string"},
                "expected_version": {"type": "integer"}
            }
        },
        "TransitionDocumentResponse": {
            "type": "object",
            "properties": {
                "document": {"$ref": "#/definitions/DocumentDTO"},
                "entry": {"$ref": "#/definitions/TransitionLogDTO"}
            }
        },
        "DocumentDTO": {
            "type": "object",
            "properties": {
                "document_id": {"type": "string"},
                "sequence_id": {"type": "string", "example": "VIH-CON-2025-0001"},
                "family": {"type": "string"},
                "year": {"type": "integer"},
                "sequence": {"type": "integer"},
                "status": {"type": "string"},
                "version": {"type": "integer"},
                "payload": {"type": "object"},
                "created_by": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"},
                "legal_next_states": {"type": "array", "items": {"type": "string"}},
                "terminal": {"type": "boolean"}
            }
        },
        "GetDocumentResponse": {
            "type": "object",
            "properties": {"document": {"$ref": "#/definitions/DocumentDTO"}}
        },
        "ListDocumentsResponse": {
            "type": "object",
            "properties": {"items": {"type": "array", "items": {"$ref": "#/definitions/DocumentDTO"}}}
        },
        "TransitionLogDTO": {
            "type": "object",
            "properties": {
                "entry_id": {"type": "string"},
                "document_id": {"type": "string"},
                "sequence_id": {"type": "string"},
                "family": {"type": "string"},
                "from_state": {"type": "string"},
                "to_state": {"type": "string"},
                "actor": {"type": "string"},
                "comment": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "ListTransitionsResponse": {
            "type": "object",
            "properties": {"items": {"type": "array", "items": {"$ref": "#/definitions/TransitionLogDTO"}}}
        },
        "StateDTO": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "label": {"type": "string"},
                "next": {"type": "array", "items": {"type": "string"}},
                "terminal": {"type": "boolean"}
            }
        },
        "FamilyDTO": {
            "type": "object",
            "properties": {
                "key": {"type": "string"},
                "prefix": {"type": "string"},
                "label": {"type": "string"},
                "initial_state": {"type": "string"},
                "states": {"type": "array", "items": {"$ref": "#/definitions/StateDTO"}}
            }
        },
        "ListFamiliesResponse": {
            "type": "object",
            "properties": {"items": {"type": "array", "items": {"$ref": "#/definitions/FamilyDTO"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "vihadmin document lifecycle API",
	Description:      "Sequence allocation, state transitions and audit history for workflow documents.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
