package lib

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"temanku/src/config"
	"temanku/src/types"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsched "github.com/aws/aws-sdk-go-v2/service/scheduler"
	schedulerTypes "github.com/aws/aws-sdk-go-v2/service/scheduler/types"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

var scheduler gocron.Scheduler

func NewScheduler(s gocron.Scheduler) {
	scheduler = s
}

func GetScheduler() (gocron.Scheduler, error) {
	if scheduler != nil {
		return scheduler, nil
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("Error initializing Scheduler: %s\n", err.Error())
		return nil, err
	}
	scheduler = sched
	numJobs := len(sched.Jobs())
	log.Printf("Jobs in queue: %d\n", numJobs)
	return sched, nil
}

// CreateSchedule registers a one-time schedule that publishes the payload
// to the named topic at runsAt. Locally this is a gocron job producing to
// Kafka; in production it is an EventBridge schedule targeting SNS.
func CreateSchedule(name string, runsAt time.Time, topic string, input string) (*uuid.UUID, error) {
	env := config.API_ENV
	if env == string(types.Production) || env == string(types.Test) {
		return createEventBridgeSchedule(name, runsAt, topic, input)
	}
	return createLocalSchedule(name, runsAt, topic, input)
}

func createLocalSchedule(name string, runsAt time.Time, topic string, input string) (*uuid.UUID, error) {
	s, err := GetScheduler()
	if err != nil {
		log.Printf("Error initializing Scheduler client: %s\n", err.Error())
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(input), &payload); err != nil {
		return nil, err
	}
	j, err := s.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(runsAt)),
		gocron.NewTask(func() {
			log.Printf("[Local] Running scheduled task %s...\n", name)
			if err := KafkaProduceMessage("scheduler", topic, payload); err != nil {
				log.Printf("Error on producing message: %s\n", err.Error())
			}
		}),
	)
	if err != nil {
		log.Printf("Error creating job: %s\n", err.Error())
		return nil, err
	}
	jid := j.ID()
	log.Printf("[Local] New Job scheduled on: %s %s\n", jid.String(), runsAt.Format(config.TIME_PARSE_FORMAT))
	return &jid, nil
}

func createEventBridgeSchedule(name string, runsAt time.Time, topic string, input string) (*uuid.UUID, error) {
	client := AWSGetSchedulerClient()
	sid := uuid.New()
	roleArn := os.Getenv("SCHEDULER_ROLE_ARN")
	topicArn := GetTopicArn(topic)
	sRunsAt := runsAt.Format("2006-01-02T15:04:05")
	sched, err := client.CreateSchedule(context.TODO(), &awsched.CreateScheduleInput{
		Name:      aws.String(fmt.Sprintf("schedule_%s", name)),
		StartDate: aws.Time(runsAt),
		Target: &schedulerTypes.Target{
			Arn:     aws.String(topicArn),
			RoleArn: aws.String(roleArn),
			Input:   aws.String(input),
			RetryPolicy: &schedulerTypes.RetryPolicy{
				MaximumRetryAttempts: aws.Int32(3),
			},
		},
		FlexibleTimeWindow:    &schedulerTypes.FlexibleTimeWindow{Mode: schedulerTypes.FlexibleTimeWindowModeOff},
		ScheduleExpression:    aws.String(fmt.Sprintf("at(%s)", sRunsAt)),
		ActionAfterCompletion: schedulerTypes.ActionAfterCompletionDelete,
	})
	if err != nil {
		log.Printf("Failed to create Schedule: %s\n", err.Error())
		return nil, err
	}
	log.Printf("Created schedule at: %s\n", *sched.ScheduleArn)
	return &sid, nil
}
