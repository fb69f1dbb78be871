package memory

import (
	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
)

var (
	ErrNotFound  = interfaces.ErrNotFound
	ErrDuplicate = interfaces.ErrDuplicate
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

type Memory struct {
	record *recordRepository
	alert  *alertRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		record: newRecordRepository(),
		alert:  newAlertRepository(),
	}
}

func (m *Memory) Record() interfaces.RecordRepository {
	return m.record
}

func (m *Memory) Alert() interfaces.AlertRepository {
	return m.alert
}

func (m *Memory) Close() error {
	return nil
}
