package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Contract Lifecycle API",
        "description": "Multi-tenant contract workflow, validation, retention and metrics backend",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Contracts", "description": "Contract records and field history"},
        {"name": "Workflow", "description": "Status transitions, approvals and SLAs"},
        {"name": "Rules", "description": "Tenant-scoped validation rules"},
        {"name": "Duplicates", "description": "Duplicate detection and resolution"},
        {"name": "Metrics", "description": "Daily aggregates and exports"},
        {"name": "Archives", "description": "Retention snapshots"},
        {"name": "Deletions", "description": "Data removal requests"},
        {"name": "Tenants", "description": "Tenant administration"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/api/v1/contracts": {
            "get": {
                "tags": ["Contracts"],
                "summary": "List contracts",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "assigned_to", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Contracts"],
                "summary": "Create contract",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateContractRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/contracts/{id}": {
            "get": {
                "tags": ["Contracts"],
                "summary": "Get contract",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Contracts"],
                "summary": "Update contract fields",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateContractRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/contracts/{id}/history": {
            "get": {
                "tags": ["Contracts"],
                "summary": "Field change history",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/contracts/{id}/transitions": {
            "get": {
                "tags": ["Workflow"],
                "summary": "List transitions",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "since", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Workflow"],
                "summary": "Transition contract status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TransitionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Illegal transition or concurrent update"}
                }
            }
        },
        "/api/v1/contracts/{id}/approvals": {
            "post": {
                "tags": ["Workflow"],
                "summary": "Request approval",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RequestApprovalRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Approval already pending"}
                }
            }
        },
        "/api/v1/approvals/{id}/resolve": {
            "post": {
                "tags": ["Workflow"],
                "summary": "Approve or reject a pending approval",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResolveApprovalRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/rules": {
            "get": {
                "tags": ["Rules"],
                "summary": "List validation rules",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Rules"],
                "summary": "Create validation rule",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateRuleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/duplicates/scan": {
            "post": {
                "tags": ["Duplicates"],
                "summary": "Scan scope for duplicate pairs",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/duplicates/{id}/resolve": {
            "post": {
                "tags": ["Duplicates"],
                "summary": "Merge or dismiss a duplicate pair",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResolveDuplicateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already resolved"}
                }
            }
        },
        "/api/v1/metrics/daily": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Daily metrics for a date",
                "parameters": [
                    {"name": "date", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/metrics/export": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Export a metrics range as CSV or PDF",
                "parameters": [
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"},
                    {"name": "format", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/v1/archives/sweep": {
            "post": {
                "tags": ["Archives"],
                "summary": "Archive aged completed contracts",
                "parameters": [
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/SweepRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/deletions": {
            "post": {
                "tags": ["Deletions"],
                "summary": "Submit a deletion request",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateDeletionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/tenants": {
            "post": {
                "tags": ["Tenants"],
                "summary": "Create tenant",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTenantRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Contract": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "tenant_id": {"type": "string"},
                "auftrag": {"type": "string"},
                "titel": {"type": "string"},
                "standort": {"type": "string"},
                "geraet_nr": {"type": "string"},
                "beschreibung": {"type": "string"},
                "status": {"type": "string", "enum": ["offen", "inbearb", "fertig"]},
                "assigned_to": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "CreateContractRequest": {
            "type": "object",
            "properties": {
                "auftrag": {"type": "string"},
                "titel": {"type": "string"},
                "standort": {"type": "string"},
                "geraet_nr": {"type": "string"},
                "beschreibung": {"type": "string"},
                "assigned_to": {"type": "string"}
            },
            "required": ["auftrag", "titel"]
        },
        "UpdateContractRequest": {
            "type": "object",
            "properties": {
                "titel": {"type": "string"},
                "standort": {"type": "string"},
                "geraet_nr": {"type": "string"},
                "beschreibung": {"type": "string"},
                "assigned_to": {"type": "string"}
            }
        },
        "TransitionRequest": {
            "type": "object",
            "properties": {
                "to_status": {"type": "string", "enum": ["offen", "inbearb", "fertig"]},
                "reason": {"type": "string"},
                "override": {"type": "boolean"},
                "metadata": {"type": "object"}
            },
            "required": ["to_status"]
        },
        "RequestApprovalRequest": {
            "type": "object",
            "properties": {
                "approver_id": {"type": "string"},
                "comments": {"type": "string"}
            },
            "required": ["approver_id"]
        },
        "ResolveApprovalRequest": {
            "type": "object",
            "properties": {
                "decision": {"type": "string", "enum": ["approved", "rejected"]},
                "comments": {"type": "string"}
            },
            "required": ["decision"]
        },
        "CreateRuleRequest": {
            "type": "object",
            "properties": {
                "field_name": {"type": "string"},
                "rule_type": {"type": "string"},
                "rule_config": {"type": "object"},
                "error_message": {"type": "string"},
                "active": {"type": "boolean"}
            },
            "required": ["field_name", "rule_type"]
        },
        "ResolveDuplicateRequest": {
            "type": "object",
            "properties": {
                "decision": {"type": "string", "enum": ["merge", "dismiss"]},
                "canonical_id": {"type": "string"}
            },
            "required": ["decision"]
        },
        "SweepRequest": {
            "type": "object",
            "properties": {
                "tenant_id": {"type": "string"},
                "retention_days": {"type": "integer"}
            }
        },
        "CreateDeletionRequest": {
            "type": "object",
            "properties": {
                "request_type": {"type": "string", "enum": ["user_data", "contract", "all_data"]},
                "target_id": {"type": "string"}
            },
            "required": ["request_type", "target_id"]
        },
        "CreateTenantRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "slug": {"type": "string"},
                "settings": {"type": "object"}
            },
            "required": ["name", "slug"]
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
