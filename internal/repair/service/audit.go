package service

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/bitfantasy/repairhub/internal/repair/repository"
	"gorm.io/gorm"
)

// ChangeLogger 字段级变更日志。与业务写入同事务：日志写不进去就整体回滚，
// 保证审计轨迹与数据一致
type ChangeLogger struct {
	historyRepo *repository.HistoryRepository
}

func NewChangeLogger(historyRepo *repository.HistoryRepository) *ChangeLogger {
	return &ChangeLogger{historyRepo: historyRepo}
}

// LogIfChanged 新旧值深比较（nil 与缺失等价），有差异才追加一条日志
func (l *ChangeLogger) LogIfChanged(tx *gorm.DB, orderID, field string, oldValue, newValue interface{}, actorID string) error {
	oldSer, err := serializeValue(oldValue)
	if err != nil {
		return fmt.Errorf("serialize old value of %s: %w", field, err)
	}
	newSer, err := serializeValue(newValue)
	if err != nil {
		return fmt.Errorf("serialize new value of %s: %w", field, err)
	}
	if serializedEqual(oldSer, newSer) {
		return nil
	}
	return l.historyRepo.Create(tx, &entity.ChangeHistory{
		RepairOrderID: orderID,
		Field:         field,
		OldValue:      oldSer,
		NewValue:      newSer,
		ActorID:       actorID,
		CreatedAt:     time.Now(),
	})
}

// Log 无条件追加一条事件型日志（没有旧值的动作，如 attachment_uploaded）
func (l *ChangeLogger) Log(tx *gorm.DB, orderID, action string, payload interface{}, actorID string) error {
	ser, err := serializeValue(payload)
	if err != nil {
		return fmt.Errorf("serialize payload of %s: %w", action, err)
	}
	return l.historyRepo.Create(tx, &entity.ChangeHistory{
		RepairOrderID: orderID,
		Field:         action,
		NewValue:      ser,
		ActorID:       actorID,
		CreatedAt:     time.Now(),
	})
}

// serializeValue JSON 序列化，nil（含带类型的 nil 指针/切片/map）归一为无值
func serializeValue(v interface{}) (*string, error) {
	if isNilValue(v) {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(raw)
	if s == "null" {
		return nil, nil
	}
	return &s, nil
}

func isNilValue(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func serializedEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
