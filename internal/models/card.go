package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Lanes is the fixed set of board columns a card can live in.
var Lanes = []string{
	"Tasks",
	"Notas",
	"Medição",
	"Aditivo",
	"Diário de Observações",
	"Viagens",
	"Nota de Crédito",
	"Nota de Empenho",
	"Requisição",
	"Notificação",
	"Reajuste",
	"Processo Administrativo",
	"Atestado",
	"As-Built",
	"Termo Recebimento Definitivo",
	"Termo Recebimento Provisório",
	"Termo Recebimento de Obra",
}

// DefaultStages is used for every lane without its own stage list.
var DefaultStages = []string{"A fazer", "Em andamento", "Em análise", "Concluído"}

func IsLane(lane string) bool {
	return slices.Contains(Lanes, lane)
}

// StageInterval records one stay of a card in a stage. ExitedAt is nil while
// the card is still there.
type StageInterval struct {
	Stage     string     `json:"stage"`
	EnteredAt time.Time  `json:"enteredAt"`
	ExitedAt  *time.Time `json:"exitedAt"`
}

type Card struct {
	Model
	Title           string                             `gorm:"not null" json:"title"`
	Description     string                             `json:"description"`
	ContractID      uuid.UUID                          `gorm:"type:uuid;not null;index" json:"contractId"`
	Lane            string                             `gorm:"not null;index" json:"lane"`
	CurrentStage    string                             `gorm:"not null" json:"currentStage"`
	History         datatypes.JSONSlice[StageInterval] `json:"history"`
	CustomFields    datatypes.JSONMap                  `json:"customFields"`
	CreatedBy       uuid.UUID                          `gorm:"type:uuid;not null" json:"createdBy"`
	CalendarEventID string                             `json:"calendarEventId,omitempty"`
}

// StartHistory opens the first interval for the card's initial stage.
func (c *Card) StartHistory(now time.Time) {
	c.History = datatypes.JSONSlice[StageInterval]{{Stage: c.CurrentStage, EnteredAt: now}}
}

// MoveToStage closes the open interval and opens a new one for stage.
// Moving to the current stage changes nothing and reports false.
func (c *Card) MoveToStage(stage string, now time.Time) bool {
	if stage == c.CurrentStage {
		return false
	}
	if n := len(c.History); n > 0 && c.History[n-1].ExitedAt == nil {
		exited := now
		c.History[n-1].ExitedAt = &exited
	}
	c.CurrentStage = stage
	c.History = append(c.History, StageInterval{Stage: stage, EnteredAt: now})
	return true
}

// OpenInterval returns the interval the card is currently in.
func (c *Card) OpenInterval() (StageInterval, bool) {
	if n := len(c.History); n > 0 && c.History[n-1].ExitedAt == nil {
		return c.History[n-1], true
	}
	return StageInterval{}, false
}

// DueDate reads the due date from the card's custom fields, if one was set.
func (c *Card) DueDate() *time.Time {
	for _, key := range []string{"dueDate", "dataVencimento"} {
		raw, ok := c.CustomFields[key].(string)
		if !ok || raw == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339, time.DateOnly} {
			if t, err := time.Parse(layout, raw); err == nil {
				return &t
			}
		}
	}
	return nil
}
