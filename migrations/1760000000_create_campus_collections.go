package migrations

import (
	"github.com/pocketbase/pocketbase/core"
)

var approvalStatuses = []string{"pending", "approved", "declined"}

func accountCollection(name string, teacher bool) *core.Collection {
	collection := core.NewBaseCollection(name)
	collection.Fields.Add(
		&core.TextField{Name: "name", Required: true, Max: 255},
		&core.EmailField{Name: "email", Required: true},
		&core.SelectField{Name: "approval_status", Required: true, MaxSelect: 1, Values: approvalStatuses},
		&core.DateField{Name: "created_at"},
	)
	if teacher {
		collection.Fields.Add(
			&core.TextField{Name: "phone", Max: 50},
			&core.TextField{Name: "profession", Max: 255},
		)
	}
	collection.AddIndex("idx_"+name+"_status", false, "approval_status", "")
	return collection
}

func init() {
	core.AppMigrations.Register(func(app core.App) error {
		presence := core.NewBaseCollection("presence")
		presence.Fields.Add(
			&core.TextField{Name: "current_location", Max: 255},
			&core.DateField{Name: "last_active_time"},
			&core.JSONField{Name: "scans", MaxSize: 64 * 1024},
		)

		scans := core.NewBaseCollection("scans")
		scans.Fields.Add(
			&core.TextField{Name: "user", Required: true},
			&core.TextField{Name: "room", Required: true, Max: 255},
			&core.DateField{Name: "timestamp", Required: true},
		)
		scans.AddIndex("idx_scans_user", false, "user", "")

		for _, collection := range []*core.Collection{
			accountCollection("students", false),
			accountCollection("teachers", true),
			accountCollection("admins", false),
			presence,
			scans,
		} {
			if err := app.Save(collection); err != nil {
				return err
			}
		}
		return nil
	}, func(app core.App) error {
		for _, name := range []string{"scans", "presence", "admins", "teachers", "students"} {
			collection, err := app.FindCollectionByNameOrId(name)
			if err != nil {
				continue
			}
			if err := app.Delete(collection); err != nil {
				return err
			}
		}
		return nil
	})
}
