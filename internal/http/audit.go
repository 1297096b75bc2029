package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/audit"
	auditrepo "github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/entities"
)

var eventTypes = map[entities.AuditEventType]bool{
	entities.AuditEventLoan:    true,
	entities.AuditEventCatalog: true,
	entities.AuditEventUser:    true,
	entities.AuditEventAuth:    true,
	entities.AuditEventNotice:  true,
}

type AuditController struct {
	auditService *audit.Service
}

func NewAuditController(auditService *audit.Service) *AuditController {
	return &AuditController{
		auditService: auditService,
	}
}

// GetAuditEvents returns paginated audit events, most recent first.
// GET /api/audit
// Query: user_id, type, entity_type, entity_id, since (RFC 3339), limit, offset.
func (ac *AuditController) GetAuditEvents(c *gin.Context) {
	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}
	userID, ok := parseOptionalQueryID(c, "user_id")
	if !ok {
		return
	}
	entityID, ok := parseOptionalQueryID(c, "entity_id")
	if !ok {
		return
	}
	since, ok := parseOptionalTime(c, "since")
	if !ok {
		return
	}

	eventType := entities.AuditEventType(c.Query("type"))
	if eventType != "" && !eventTypes[eventType] {
		respondBadRequest(c, "unknown event type "+string(eventType))
		return
	}

	events, total, err := ac.auditService.GetEvents(auditrepo.Filter{
		UserID:     userID,
		EventType:  eventType,
		EntityType: c.Query("entity_type"),
		EntityID:   entityID,
		Since:      since,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		respondInternalError(c, err, "load audit events")
		return
	}

	respondPage(c, events, total, limit, offset, len(events))
}
