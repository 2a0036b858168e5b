// Package docs registers the OpenAPI description served under /swagger. Keep it in step
// with the handler annotations.
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
        "/api/auth/send-otp": {
            "post": {
                "description": "Issues a 6-digit code for the email and dispatches it. Outside production the code is echoed back.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Request a one-time code",
                "parameters": [
                    {
                        "description": "Email and purpose (login by default)",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/models.SendOTPRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.Envelope"}}
                }
            }
        },
        "/api/auth/verify-otp": {
            "post": {
                "description": "Consumes the active code and starts a session (auth-token cookie).",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Verify a one-time code",
                "parameters": [
                    {
                        "description": "Email, code and purpose",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/models.VerifyOTPRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "410": {"description": "Gone", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/handlers.Envelope"}}
                }
            }
        },
        "/api/auth/logout": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Sign out",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}}
                }
            }
        },
        "/api/auth/me": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.Envelope"}}
                }
            }
        },
        "/api/admin/email-config": {
            "get": {
                "description": "Reports whether OTP email delivery is configured, with operator recommendations.",
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Email dispatcher diagnostics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handlers.Envelope"}}
                }
            }
        },
        "/api/admin/users/roster.pdf": {
            "get": {
                "produces": ["application/pdf"],
                "tags": ["Admin"],
                "summary": "Member roster as PDF",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.Envelope"}}
                }
            }
        },
        "/api/debug/users": {
            "get": {
                "description": "Admin only. Lists users, profiles and recent OTP issuances.",
                "produces": ["application/json"],
                "tags": ["Debug"],
                "summary": "Dump auth tables",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.Envelope"}}
                }
            }
        },
        "/api/posts": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Posts"],
                "summary": "List posts",
                "parameters": [
                    {"type": "integer", "description": "Page size (default 20, max 100)", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "Offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.Envelope"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Posts"],
                "summary": "Create a post",
                "parameters": [
                    {
                        "description": "Post",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/models.CreatePostRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.Envelope"}}
                }
            }
        },
        "/api/posts/upload-url": {
            "post": {
                "description": "Returns a presigned PUT URL for uploading a post image straight to object storage.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Posts"],
                "summary": "Presigned image upload",
                "parameters": [
                    {
                        "description": "File name and content type",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/models.UploadURLRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handlers.Envelope"}}
                }
            }
        },
        "/api/posts/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Posts"],
                "summary": "Get a post",
                "parameters": [
                    {"type": "string", "description": "Post id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.Envelope"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["Posts"],
                "summary": "Delete a post",
                "parameters": [
                    {"type": "string", "description": "Post id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.Envelope"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.Envelope": {
            "type": "object",
            "properties": {
                "data": {},
                "message": {"type": "string"},
                "status": {"type": "string", "example": "success"}
            }
        },
        "models.SendOTPRequest": {
            "type": "object",
            "required": ["email"],
            "properties": {
                "email": {"type": "string"},
                "purpose": {"type": "string", "enum": ["login", "register"]}
            }
        },
        "models.VerifyOTPRequest": {
            "type": "object",
            "required": ["email", "code"],
            "properties": {
                "code": {"type": "string"},
                "email": {"type": "string"},
                "purpose": {"type": "string", "enum": ["login", "register"]}
            }
        },
        "models.CreatePostRequest": {
            "type": "object",
            "required": ["title", "body"],
            "properties": {
                "body": {"type": "string"},
                "image_url": {"type": "string"},
                "title": {"type": "string", "maxLength": 200}
            }
        },
        "models.UploadURLRequest": {
            "type": "object",
            "required": ["filename", "content_type"],
            "properties": {
                "content_type": {"type": "string"},
                "filename": {"type": "string"}
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
	Title:            "OBOG Portal API",
	Description:      "Passwordless email sign-in for the alumni portal.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
