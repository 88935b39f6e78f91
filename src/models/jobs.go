package models

import (
	"encoding/json"
	"log"
	"temanku/src/db"
	"temanku/src/lib"
	"temanku/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobTask records a one-time schedule (booking completion) so pending jobs
// survive a restart and can be re-queued at boot.
type JobTask struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	Name          string      `json:"-"`
	JobType       string      `json:"-"`
	RunsAt        time.Time   `json:"-"`
	HandlerParams []any       `gorm:"type:jsonb" json:"-"`
	PayloadID     string      `json:"-"`
	Payload       types.JSONB `gorm:"type:jsonb" json:"-"`
	Source        string      `json:"-"`
	SourceType    string      `json:"-"`
	Status        string      `gorm:"default:'pending'" json:"-"`
	Topic         string      `json:"-"`
}

func (jt *JobTask) CreateAndEnqueueJobTask(jobTask JobTask) (string, error) {
	var jobID string
	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		bookingId := jobTask.HandlerParams[0]
		pBytes, err := json.Marshal(jobTask.Payload)
		if err != nil {
			log.Printf("Failed to marshal payload: %s\n", err.Error())
			return err
		}
		sPayload := string(pBytes)
		sid, err := lib.CreateSchedule(jobTask.Name, jobTask.RunsAt, jobTask.Topic, sPayload)
		if err != nil {
			log.Printf("Error creating job for Booking: id=%v error=%s\n", bookingId, err.Error())
			return err
		}
		jobID = sid.String()
		jobTask.ID = *sid
		jobTask.Payload["JobID"] = jobID
		err = tx.Create(&jobTask).Error
		if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	log.Printf("Created schedule for job %s with name %s at %s\n", jobID, jobTask.Name, jobTask.RunsAt.Format(time.RFC3339))
	return jobID, nil
}
