package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "PTMS API",
        "description": "Practical training management for internship applications, letters and reviews",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Account registration and JWT sessions"},
        {"name": "Sessions", "description": "Training sessions and eligibility"},
        {"name": "Applications", "description": "Internship application lifecycle"},
        {"name": "Forms", "description": "Form responses and signatures"},
        {"name": "Documents", "description": "Generated letters"},
        {"name": "Reviews", "description": "Coordinator reviews"},
        {"name": "Supervisor", "description": "External supervisor signing"},
        {"name": "Reports", "description": "Reporting aggregates"},
        {"name": "Exports", "description": "Asynchronous report exports"},
        {"name": "Maintenance", "description": "Administrative cleanup"}
    ],
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Register an account",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange credentials for a token pair",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate a refresh token",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List training sessions",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Sessions"],
                "summary": "Create a training session",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/sessions/{id}/eligibility": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Check the credit requirement for a student",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/sessions/{id}/import-students": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Import a CSV student roster",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/applications": {
            "get": {
                "tags": ["Applications"],
                "summary": "List applications",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Applications"],
                "summary": "Open an application",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/applications/{id}/submit": {
            "post": {
                "tags": ["Applications"],
                "summary": "Submit a draft application",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/applications/{id}/forms": {
            "get": {
                "tags": ["Forms"],
                "summary": "List form responses",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Forms"],
                "summary": "Submit a form response",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/applications/{id}/documents/{type}": {
            "post": {
                "tags": ["Documents"],
                "summary": "Generate a letter",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/applications/{id}/reviews": {
            "post": {
                "tags": ["Reviews"],
                "summary": "Record a coordinator decision",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/supervisor/verify/{token}": {
            "get": {
                "tags": ["Supervisor"],
                "summary": "Resolve a supervisor signing link",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/supervisor/sign/{token}": {
            "post": {
                "tags": ["Supervisor"],
                "summary": "Sign a form through a supervisor link",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/reports/overview": {
            "get": {
                "tags": ["Reports"],
                "summary": "Headline reporting aggregates",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue a report export",
                "responses": {"202": {"description": "Accepted"}}
            }
        },
        "/maintenance/change-requests": {
            "post": {
                "tags": ["Maintenance"],
                "summary": "Clean up stale change requests",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
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
