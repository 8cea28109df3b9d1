package types

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// The entities declare their gorm fields explicitly; an embedded gorm.Model
// would shadow the uuid primary key and the timestamp columns.
func TestEntityFieldsDeclaredExplicitly(t *testing.T) {
	entities := []any{User{}, Conversation{}, Message{}, Document{}, DocumentChunk{}}

	for _, e := range entities {
		typ := reflect.TypeOf(e)
		t.Run(typ.Name(), func(t *testing.T) {
			if _, embedded := typ.FieldByName("Model"); embedded {
				t.Fatalf("%s embeds gorm.Model", typ.Name())
			}

			id, ok := typ.FieldByName("ID")
			if !ok {
				t.Fatalf("%s has no ID field", typ.Name())
			}
			if id.Type != reflect.TypeOf(uuid.UUID{}) {
				t.Fatalf("%s.ID type: want=uuid.UUID got=%s", typ.Name(), id.Type)
			}

			deleted, ok := typ.FieldByName("DeletedAt")
			if !ok {
				t.Fatalf("%s has no DeletedAt field", typ.Name())
			}
			if deleted.Type != reflect.TypeOf(gorm.DeletedAt{}) {
				t.Fatalf("%s.DeletedAt type: want=gorm.DeletedAt got=%s", typ.Name(), deleted.Type)
			}
		})
	}
}
