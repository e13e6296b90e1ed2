package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CampusKit API",
        "description": "Role-based school management API",
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
        {"name": "Authentication", "description": "Login, tokens and the password change flow"},
        {"name": "Announcements", "description": "Targeted announcements with scheduled expiry"},
        {"name": "Users", "description": "User management"},
        {"name": "Tickets", "description": "Support tickets"},
        {"name": "Attendance", "description": "Session records and register exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/change-password/verify-current": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Verify the current password and open a change challenge",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Challenge opened"},
                    "401": {"description": "Current password incorrect"}
                }
            }
        },
        "/auth/2fa/send-otp": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Send a one-time passcode",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Sent"},
                    "403": {"description": "No open challenge"}
                }
            }
        },
        "/auth/verify-otp": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Verify the delivered passcode",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Verified"},
                    "401": {"description": "Incorrect or expired passcode"}
                }
            }
        },
        "/auth/change-password/do-update": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Commit the new password",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Password changed, sessions revoked"},
                    "403": {"description": "Verification steps not complete"}
                }
            }
        },
        "/announcements": {
            "get": {
                "tags": ["Announcements"],
                "summary": "List announcements visible to the caller",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Announcements"],
                "summary": "Create an announcement",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Validation error"}
                }
            }
        },
        "/announcements/expired": {
            "delete": {
                "tags": ["Announcements"],
                "summary": "Purge expired announcements immediately",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Purge count"}
                }
            }
        },
        "/announcements/{id}": {
            "put": {
                "tags": ["Announcements"],
                "summary": "Patch an announcement (requires current version)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found"},
                    "409": {"description": "Version conflict"}
                }
            }
        },
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
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
