package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "ECM Agenda API",
        "description": "Room agenda, lesson availability and bookings over the academy calendars",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "ApiKey": {"type": "apiKey", "in": "header", "name": "X-API-Key"}
    },
    "tags": [
        {"name": "Agenda", "description": "Events per room"},
        {"name": "Availability", "description": "Free lesson slots"},
        {"name": "Bookings", "description": "Calendar write-back"},
        {"name": "Rooms", "description": "Instrument to room policy"},
        {"name": "System", "description": "Probes and metrics"}
    ],
    "paths": {
        "/": {
            "get": {
                "tags": ["System"],
                "summary": "Banner",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/health": {
            "get": {
                "tags": ["System"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ready": {
            "get": {
                "tags": ["System"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Cache unreachable"}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["System"],
                "summary": "Metrics snapshot",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/agenda": {
            "get": {
                "tags": ["Agenda"],
                "summary": "List room events",
                "security": [{"ApiKey": []}],
                "produces": ["application/json", "text/csv", "application/pdf", "text/calendar", "text/plain"],
                "parameters": [
                    {"name": "start", "in": "query", "type": "string", "format": "date"},
                    {"name": "end", "in": "query", "type": "string", "format": "date"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["json", "csv", "pdf", "ics", "text"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid range", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid API key", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Calendar provider failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/availability": {
            "get": {
                "tags": ["Availability"],
                "summary": "Search free lesson slots",
                "security": [{"ApiKey": []}],
                "parameters": [
                    {"name": "start", "in": "query", "type": "string", "format": "date", "required": true},
                    {"name": "end", "in": "query", "type": "string", "format": "date", "required": true},
                    {"name": "instrumento", "in": "query", "type": "string"},
                    {"name": "profe", "in": "query", "type": "string"},
                    {"name": "dur_min", "in": "query", "type": "integer", "enum": [30, 45, 60]},
                    {"name": "salas", "in": "query", "type": "string"},
                    {"name": "window_start", "in": "query", "type": "string"},
                    {"name": "window_end", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid query", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid API key", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Calendar provider failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rooms": {
            "get": {
                "tags": ["Rooms"],
                "summary": "Rooms usable for an instrument, best first",
                "security": [{"ApiKey": []}],
                "parameters": [
                    {"name": "instrumento", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/bookings": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Book a lesson",
                "security": [{"ApiKey": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBookingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Bookings disabled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Slot taken", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings/{room}/{event_id}": {
            "delete": {
                "tags": ["Bookings"],
                "summary": "Cancel a booked lesson",
                "security": [{"ApiKey": []}],
                "parameters": [
                    {"name": "room", "in": "path", "type": "string", "required": true},
                    {"name": "event_id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Cancelled"},
                    "404": {"description": "Not found or bookings disabled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateBookingRequest": {
            "type": "object",
            "required": ["room", "date", "start", "duration_minutes", "student"],
            "properties": {
                "room": {"type": "string"},
                "date": {"type": "string", "format": "date"},
                "start": {"type": "string", "example": "15:00"},
                "duration_minutes": {"type": "integer", "enum": [30, 45, 60]},
                "student": {"type": "string"},
                "instrument": {"type": "string"},
                "teacher": {"type": "string"}
            }
        },
        "AvailabilitySlot": {
            "type": "object",
            "properties": {
                "date": {"type": "string", "format": "date"},
                "date_label": {"type": "string", "example": "Jue 15/01"},
                "room": {"type": "string"},
                "instrument": {"type": "string"},
                "teacher": {"type": "string"},
                "start": {"type": "string"},
                "end": {"type": "string"},
                "duration_minutes": {"type": "integer"},
                "placement_kind": {"type": "string", "enum": ["start_of_gap", "dovetail_end"]}
            }
        },
        "AgendaEvent": {
            "type": "object",
            "properties": {
                "room": {"type": "string"},
                "date": {"type": "string", "format": "date"},
                "date_label": {"type": "string"},
                "start": {"type": "string"},
                "end": {"type": "string"},
                "duration_minutes": {"type": "integer"},
                "all_day": {"type": "boolean"},
                "title": {"type": "string"},
                "instrument": {"type": "string"},
                "teacher": {"type": "string"},
                "student": {"type": "string"},
                "event_id": {"type": "string"}
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
