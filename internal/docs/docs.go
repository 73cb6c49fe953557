// Package docs registers the OpenAPI document served at /swagger.
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
        "/auth/signup": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Create an account",
                "parameters": [
                    {"description": "Signup details", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.SignupRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.AuthResponse"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Email already registered", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Log in",
                "parameters": [
                    {"description": "Credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Logged in", "schema": {"$ref": "#/definitions/domain.AuthResponse"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Account locked", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Log out",
                "responses": {
                    "200": {"description": "Logged out", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/auth/profile": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "User", "schema": {"$ref": "#/definitions/domain.User"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/expenses": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["expenses"],
                "summary": "List expenses",
                "parameters": [
                    {"type": "string", "description": "Category", "name": "category", "in": "query"},
                    {"type": "string", "description": "Earliest date (YYYY-MM-DD)", "name": "startDate", "in": "query"},
                    {"type": "string", "description": "Latest date (YYYY-MM-DD)", "name": "endDate", "in": "query"},
                    {"type": "string", "description": "Search title, description and merchant", "name": "q", "in": "query"},
                    {"minimum": 1, "type": "integer", "description": "Page number", "name": "page", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "description": "Items per page", "name": "pageSize", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Expenses", "schema": {"$ref": "#/definitions/domain.ExpenseListResponse"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["expenses"],
                "summary": "Create expense",
                "parameters": [
                    {"description": "Expense", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.CreateExpenseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.Expense"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Duplicate id", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/expenses/categories": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["expenses"],
                "summary": "List categories",
                "responses": {
                    "200": {"description": "Categories", "schema": {"type": "array", "items": {"type": "string"}}}
                }
            }
        },
        "/expenses/export": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "tags": ["expenses"],
                "summary": "Export expenses",
                "parameters": [
                    {"enum": ["csv", "pdf"], "type": "string", "description": "csv or pdf", "name": "format", "in": "query"},
                    {"type": "string", "description": "Earliest date (YYYY-MM-DD)", "name": "startDate", "in": "query"},
                    {"type": "string", "description": "Latest date (YYYY-MM-DD)", "name": "endDate", "in": "query"},
                    {"type": "string", "description": "Category", "name": "category", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Export document", "schema": {"type": "file"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/expenses/extract-from-image": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["expenses"],
                "summary": "Extract expense from image",
                "parameters": [
                    {"type": "file", "description": "Receipt image", "name": "image", "in": "formData", "required": true}
                ],
                "responses": {
                    "200": {"description": "Extracted data", "schema": {"$ref": "#/definitions/domain.ImageUploadResponse"}},
                    "400": {"description": "No image", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "413": {"description": "Image too large", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "415": {"description": "Unsupported image", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "422": {"description": "Extraction failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/expenses/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["expenses"],
                "summary": "Get expense",
                "parameters": [
                    {"type": "string", "description": "Expense ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Expense", "schema": {"$ref": "#/definitions/domain.Expense"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["expenses"],
                "summary": "Update expense",
                "parameters": [
                    {"type": "string", "description": "Expense ID", "name": "id", "in": "path", "required": true},
                    {"description": "Fields to change", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.UpdateExpenseRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated", "schema": {"$ref": "#/definitions/domain.Expense"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["expenses"],
                "summary": "Delete expense",
                "parameters": [
                    {"type": "string", "description": "Expense ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Deleted", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.SignupRequest": {
            "type": "object",
            "required": ["email", "name", "password"],
            "properties": {
                "name": {"type": "string", "example": "Ada Lovelace"},
                "email": {"type": "string", "example": "ada@example.com"},
                "password": {"type": "string", "example": "password123"}
            }
        },
        "domain.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "domain.User": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "email": {"type": "string"},
                "createdAt": {"type": "string"}
            }
        },
        "domain.AuthResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "user": {"$ref": "#/definitions/domain.User"},
                "token": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "domain.ExtractedExpenseData": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "amount": {"type": "number"},
                "merchant": {"type": "string"},
                "category": {"type": "string"},
                "date": {"type": "string", "example": "2024-03-01"},
                "confidence": {"type": "number", "maximum": 1, "minimum": 0}
            }
        },
        "domain.Expense": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "amount": {"type": "number"},
                "category": {"type": "string"},
                "merchant": {"type": "string"},
                "date": {"type": "string", "example": "2024-03-01"},
                "imageUrl": {"type": "string"},
                "extractedData": {"$ref": "#/definitions/domain.ExtractedExpenseData"},
                "userId": {"type": "string"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "domain.CreateExpenseRequest": {
            "type": "object",
            "required": ["title", "description", "category", "date"],
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "amount": {"type": "number", "minimum": 0},
                "category": {"type": "string"},
                "merchant": {"type": "string"},
                "date": {"type": "string", "example": "2024-03-01"},
                "imageUrl": {"type": "string"},
                "extractedData": {"$ref": "#/definitions/domain.ExtractedExpenseData"}
            }
        },
        "domain.UpdateExpenseRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "amount": {"type": "number", "minimum": 0},
                "category": {"type": "string"},
                "merchant": {"type": "string"},
                "date": {"type": "string"},
                "imageUrl": {"type": "string"},
                "extractedData": {"$ref": "#/definitions/domain.ExtractedExpenseData"}
            }
        },
        "domain.Page": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "pageSize": {"type": "integer"},
                "totalItems": {"type": "integer"},
                "totalPages": {"type": "integer"}
            }
        },
        "domain.ExpenseListResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {"type": "array", "items": {"$ref": "#/definitions/domain.Expense"}},
                "pagination": {"$ref": "#/definitions/domain.Page"},
                "message": {"type": "string"}
            }
        },
        "domain.ImageUploadResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "extractedData": {"$ref": "#/definitions/domain.ExtractedExpenseData"},
                "message": {"type": "string"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": false},
                "message": {"type": "string", "example": "Expense not found"},
                "error": {"type": "string", "example": "EXPENSE_NOT_FOUND"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:3000",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "SpendSnap API",
	Description:      "Reference backend for the SpendSnap receipt-driven expense tracker.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
