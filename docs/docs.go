package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "PropIntel Backend",
    "description": "Property matching, client intent scoring, market insights and broker recommendations",
    "version": "1.0"
  },
  "basePath": "/",
  "securityDefinitions": {
    "AdminKey": {"type": "apiKey", "in": "header", "name": "X-Admin-Key"}
  },
  "paths": {
    "/healthz": {
      "get": {"tags": ["health"], "summary": "Database health", "responses": {"200": {"description": "OK"}, "503": {"description": "Database unavailable"}}}
    },
    "/api/analyze": {
      "post": {"tags": ["engine"], "summary": "Analyze a client against supplied properties", "responses": {"200": {"description": "OK"}}}
    },
    "/api/match": {
      "post": {"tags": ["engine"], "summary": "Score and rank properties for a client", "responses": {"200": {"description": "OK"}}}
    },
    "/api/intent": {
      "post": {"tags": ["engine"], "summary": "Score client purchase intent", "responses": {"200": {"description": "OK"}}}
    },
    "/api/insights/analyze": {
      "post": {"tags": ["engine"], "summary": "Derive market insights from properties", "responses": {"200": {"description": "OK"}}}
    },
    "/api/recommendations/generate": {
      "post": {"tags": ["engine"], "summary": "Generate broker recommendations", "responses": {"200": {"description": "OK"}}}
    },
    "/api/clients": {
      "get": {"tags": ["data"], "summary": "List stored clients", "responses": {"200": {"description": "OK"}}}
    },
    "/api/properties": {
      "get": {"tags": ["data"], "summary": "List stored properties", "responses": {"200": {"description": "OK"}}}
    },
    "/api/insights": {
      "get": {"tags": ["data"], "summary": "List unexpired market insights", "responses": {"200": {"description": "OK"}}}
    },
    "/api/recommendations": {
      "get": {"tags": ["data"], "summary": "List broker recommendations", "responses": {"200": {"description": "OK"}}}
    },
    "/api/runs/latest": {
      "get": {"tags": ["runs"], "summary": "Latest run of a kind", "responses": {"200": {"description": "OK"}}}
    },
    "/api/clients/{id}/analyze": {
      "post": {"tags": ["admin"], "summary": "Analyze a stored client and persist the result", "responses": {"200": {"description": "OK"}}}
    },
    "/api/process/recommendations": {
      "post": {"tags": ["admin"], "summary": "Generate and store recommendations for all clients", "responses": {"200": {"description": "OK"}}}
    },
    "/api/process/insights": {
      "post": {"tags": ["admin"], "summary": "Compute and store market insights", "responses": {"200": {"description": "OK"}}}
    },
    "/api/process/analyze-all": {
      "post": {"tags": ["admin"], "summary": "Analyze every active client", "responses": {"200": {"description": "OK"}}}
    },
    "/api/recommendations/{id}/read": {
      "post": {"tags": ["admin"], "summary": "Mark a recommendation as read", "responses": {"200": {"description": "OK"}}}
    }
  }
}`

// SwaggerInfo is served at /swagger/doc.json.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Title:            "PropIntel Backend",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
