package boot

import (
	"encoding/json"
	"log"
	"os"
	"temanku/src/common"
	"temanku/src/db"
	"temanku/src/lib"
	"temanku/src/models"
	"time"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Talent{},
		&models.Booking{},
		&models.ChatChannel{},
		&models.ChatMessage{},
		&models.JobTask{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

func InitBroker() {
	go RecoverQueuedJobs()
	go UpdateExpiredJobs()
	go lib.KafkaCreateTopics("bookings-changed", "BookingsToComplete")
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == "local" {
		go mailConsumer()
		go completionTopicConsumer()
		return
	}
	queueArn := os.Getenv("BOOKINGS_QUEUE_ARN")
	if queueArn != "" {
		go lib.SNSSubscribeQueue("BookingsToComplete", queueArn)
	}
	go common.BookingsToCompleteConsumer()
}

// mailConsumer is the local stand-in for the email worker: it drains the
// email queue topic and delivers through SMTP directly.
func mailConsumer() {
	queue := os.Getenv("EMAIL_QUEUE")
	env := lib.QueueEnvSuffix()
	if env != "" {
		queue = queue + "-" + env
	}
	lib.KafkaConsume("mailer", []string{queue}, func(value []byte) {
		var body struct {
			From     string   `json:"from"`
			FromName string   `json:"from-name"`
			To       []string `json:"to"`
			ReplyTo  string   `json:"reply-to"`
			Subject  string   `json:"subject"`
			Body     string   `json:"body"`
			Html     bool     `json:"html"`
		}
		if err := json.Unmarshal(value, &body); err != nil {
			log.Printf("Error deserializing email message: %s\n", err.Error())
			return
		}
		err := lib.SendMail(&lib.SendMailInput{
			From:     body.From,
			FromName: body.FromName,
			To:       body.To,
			ReplyTo:  body.ReplyTo,
			Subject:  body.Subject,
			Body:     body.Body,
			Html:     body.Html,
		})
		if err != nil {
			log.Printf("Error sending email: %s\n", err.Error())
		}
	})
}

// completionTopicConsumer bridges the local scheduler's Kafka messages to
// the same completion path the SQS consumer runs in other environments.
func completionTopicConsumer() {
	lib.KafkaConsume("bookings_to_complete", []string{"BookingsToComplete"}, func(value []byte) {
		common.HandleCompletionMessage(string(value))
	})
}

func InitScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	jobsWaitingInQueue := len(sched.Jobs())
	log.Println("Jobs in queue:", jobsWaitingInQueue)
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while stopping Scheduler. Check logs for info")
		return
	}
}

// RecoverQueuedJobs re-queues pending one-time jobs after a restart so a
// booking approved before a deploy still completes on time.
func RecoverQueuedJobs() error {
	sched, err := lib.GetScheduler()
	if err != nil {
		return err
	}
	db := db.GetDb()
	ss := db.Session(&gorm.Session{PrepareStmt: true})
	var jobTasks []models.JobTask
	today := time.Now()
	in1m := today.Add(1 * time.Minute)
	in3months := today.Add((24 * 30 * 3) * time.Hour)
	err = ss.
		Model(&models.JobTask{}).Select("id", "name", "payload", "runs_at").
		Where(&models.JobTask{Status: "pending", JobType: "OneTimeJobStartDateTime"}).
		Where("runs_at BETWEEN ? AND ?", in1m, in3months).
		Order("runs_at asc").
		Limit(100).
		Find(&jobTasks).
		Error
	if err != nil {
		log.Printf("Error retrieving jobs: %s\n", err.Error())
		return err
	}
	log.Printf("Found %d pending jobs", len(jobTasks))
	for _, jobTask := range jobTasks {
		log.Printf("Queueing: %s\n", jobTask.ID.String())
		jobDef := gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(jobTask.RunsAt))
		jt := gocron.NewTask(func() {
			err := lib.KafkaProduceMessage(jobTask.Payload["producerClientId"].(string), jobTask.Payload["topic"].(string), jobTask.Payload)
			if err != nil {
				log.Printf("Error on producing message: %s\n", err.Error())
				return
			}
		})
		job, err := sched.NewJob(
			jobDef,
			jt,
		)
		if err != nil {
			log.Printf("Failed to schedule job [%s]. Skipping: %s\n", jobTask.ID.String(), err.Error())
			continue
		}
		log.Printf("Added job to scheduler: name=%s id=%s job=%s\n", jobTask.Name, jobTask.ID.String(), job.ID().String())
	}

	return nil
}

func UpdateExpiredJobs() {
	db := db.GetDb()
	err := db.
		Transaction(func(tx *gorm.DB) error {
			err := tx.Model(&models.JobTask{}).
				Where("status", "pending").
				Where("runs_at < ?", time.Now()).
				Update("status", "expired").Error
			if err != nil {
				return err
			}
			return nil
		})
	if err != nil {
		log.Printf("Error while processing expired jobs: %s\n", err.Error())
	}
}
