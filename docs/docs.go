// Package docs registers the OpenAPI document of the development backend with swag,
// which the /swagger route serves.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "schemes": {{ marshal .Schemes }},
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/health": {
            "get": {"tags": ["health"], "summary": "Liveness probe", "responses": {"200": {"description": "OK"}}}
        },
        "/api/auth/login": {
            "post": {
                "tags": ["auth"], "summary": "Sign in",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/models.LoginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.AuthResponse"}},
                    "400": {"description": "Bad Request"},
                    "401": {"description": "Invalid email or password"}
                }
            }
        },
        "/api/auth/register": {
            "post": {
                "tags": ["auth"], "summary": "Create an account",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/models.RegisterRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.AuthResponse"}},
                    "400": {"description": "Email already in use or invalid body"}
                }
            }
        },
        "/api/auth/forgot-password": {
            "post": {
                "tags": ["auth"], "summary": "Request a password reset",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/models.ForgotPasswordRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.MessageResponse"}}}
            }
        },
        "/api/auth/reset-password": {
            "post": {
                "tags": ["auth"], "summary": "Reset a password with a reset token",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/models.ResetPasswordRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.MessageResponse"}},
                    "400": {"description": "Invalid or expired reset token"}
                }
            }
        },
        "/api/greenhouse/messages/recent": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["greenhouse"], "summary": "Recent greenhouse messages",
                "parameters": [{"in": "query", "name": "limit", "type": "integer"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.GreenhouseMessage"}}},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/api/mqtt/publish/custom": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["greenhouse"], "summary": "Publish a raw payload",
                "parameters": [
                    {"in": "query", "name": "topic", "type": "string", "required": true},
                    {"in": "query", "name": "qos", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Rejected"}, "401": {"description": "Unauthorized"}}
            }
        },
        "/ws/greenhouse-native": {
            "get": {"tags": ["realtime"], "summary": "Realtime feed (STOMP 1.2 over WebSocket)", "responses": {"101": {"description": "Switching Protocols"}}}
        }
    },
    "definitions": {
        "models.LoginRequest": {"type": "object", "properties": {"email": {"type": "string"}, "password": {"type": "string"}}},
        "models.RegisterRequest": {"type": "object", "properties": {"username": {"type": "string"}, "email": {"type": "string"}, "password": {"type": "string"}}},
        "models.ForgotPasswordRequest": {"type": "object", "properties": {"email": {"type": "string"}}},
        "models.ResetPasswordRequest": {"type": "object", "properties": {"token": {"type": "string"}, "newPassword": {"type": "string"}}},
        "models.AuthResponse": {"type": "object", "properties": {"token": {"type": "string"}, "type": {"type": "string"}, "username": {"type": "string"}, "email": {"type": "string"}}},
        "models.MessageResponse": {"type": "object", "properties": {"message": {"type": "string"}}},
        "models.GreenhouseMessage": {
            "type": "object",
            "properties": {
                "timestamp": {"type": "string"},
                "temperature01": {"type": "number"},
                "humidity01": {"type": "number"},
                "temperature02": {"type": "number"},
                "humidity02": {"type": "number"},
                "sector01": {"type": "number"},
                "greenhouseId": {"type": "string"},
                "rawPayload": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Greenhouse development backend",
	Description:      "Auth, recent readings, custom publish and the STOMP realtime feed.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
