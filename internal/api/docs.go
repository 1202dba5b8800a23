// Package api holds the Swagger document for the public donation API and
// the request validation built from it.
package api

import (
	"net/http"

	"github.com/swaggo/swag"
)

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/donations": {
            "post": {
                "description": "Validate a donation intent, open a checkout session with the chosen provider and record the pending donation.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["donations"],
                "summary": "Start a donation",
                "parameters": [
                    {
                        "description": "Donation intent",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/StartDonationRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Checkout session created", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "400": {"description": "Invalid intent", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "502": {"description": "Provider error, retryable", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "503": {"description": "Provider unavailable", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            }
        },
        "/api/donations/verify": {
            "get": {
                "description": "Ask the provider for the payment status and record it. Safe to call repeatedly.",
                "produces": ["application/json"],
                "tags": ["donations"],
                "summary": "Verify a donation",
                "parameters": [
                    {"type": "string", "description": "Donation id", "name": "donation_id", "in": "query"},
                    {"type": "string", "description": "Provider session or payment reference", "name": "session_id", "in": "query"},
                    {"type": "string", "enum": ["stripe", "khalti", "esewa", "mock"], "description": "Provider, required when donation_id is absent", "name": "provider", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Current donation state", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "404": {"description": "Unknown donation", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "409": {"description": "Verification mismatch", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "502": {"description": "Provider error, retryable", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            }
        },
        "/api/donations/{donationID}": {
            "get": {
                "description": "Read the stored status without contacting the provider.",
                "produces": ["application/json"],
                "tags": ["donations"],
                "summary": "Get a donation",
                "parameters": [
                    {"type": "string", "description": "Donation id", "name": "donationID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Donation", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "404": {"description": "Unknown donation", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "VERIFICATION_MISMATCH"},
                "message": {"type": "string"}
            }
        },
        "APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"}
            }
        },
        "DonorInput": {
            "type": "object",
            "required": ["name", "email"],
            "properties": {
                "name": {"type": "string", "minLength": 1, "maxLength": 200, "example": "Sita Sharma"},
                "email": {"type": "string", "maxLength": 254, "example": "sita@example.org"},
                "phone": {"type": "string", "maxLength": 32, "example": "9800000001"}
            }
        },
        "StartDonationRequest": {
            "type": "object",
            "required": ["donor", "amount", "currency", "provider"],
            "properties": {
                "donor": {"$ref": "#/definitions/DonorInput"},
                "amount": {"type": "string", "pattern": "^[0-9]+(\\.[0-9]+)?$", "example": "50.00"},
                "currency": {"type": "string", "enum": ["USD", "NPR"]},
                "recurrence": {"type": "string", "enum": ["one_time", "monthly"]},
                "provider": {"type": "string", "enum": ["stripe", "khalti", "esewa", "mock"]}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "",
	Schemes:          []string{},
	Title:            "Donation Gateway API",
	Description:      "Starts donations with Stripe, Khalti or eSewa and verifies their outcome.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// RegisterDocsRoutes serves the rendered Swagger document.
func RegisterDocsRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /docs/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		doc, err := swag.ReadDoc(SwaggerInfo.InstanceName())
		if err != nil {
			http.Error(w, "swagger document unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(doc))
	})
}
