package models

import (
	"log"

	"bitbucket.org/mmdatafocus/demodata_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&DemoTenant{}, &DemoUser{},
		&PipelineStage{}, &Tag{},
		&Company{}, &Contact{}, &Deal{}, &Activity{},
		&GenerationJob{}, &PatchJob{}, &MetricOverride{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
