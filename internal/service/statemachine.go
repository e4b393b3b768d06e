package service

import "github.com/shenikar/traffic_incident_system/internal/models"

// StateMachine - таблица допустимых переходов статуса инцидента
type StateMachine struct {
	transitions map[models.Status]map[models.Status]bool
}

// NewStateMachine строит таблицу переходов. allowSkip разрешает пропуск промежуточных статусов.
func NewStateMachine(allowSkip bool) *StateMachine {
	t := map[models.Status]map[models.Status]bool{
		models.StatusReported: {
			models.StatusVerified:      true,
			models.StatusFalsePositive: true,
		},
		models.StatusVerified: {
			models.StatusInProgress:    true,
			models.StatusFalsePositive: true,
		},
		models.StatusInProgress: {
			models.StatusResolved:      true,
			models.StatusFalsePositive: true,
		},
		models.StatusResolved:      {},
		models.StatusFalsePositive: {},
	}

	if allowSkip {
		t[models.StatusReported][models.StatusInProgress] = true
		t[models.StatusReported][models.StatusResolved] = true
		t[models.StatusVerified][models.StatusResolved] = true
	}

	return &StateMachine{transitions: t}
}

// CanTransition сообщает, допустим ли переход from -> to
func (m *StateMachine) CanTransition(from, to models.Status) bool {
	return m.transitions[from][to]
}

// Next возвращает допустимые статусы из from в порядке жизненного цикла
func (m *StateMachine) Next(from models.Status) []models.Status {
	next := make([]models.Status, 0, 3)
	for _, s := range models.Statuses {
		if m.transitions[from][s] {
			next = append(next, s)
		}
	}
	return next
}
