package mailer

import (
	"encoding/json"
	"fmt"
	"os"
	"temanku/src/lib"
	"temanku/src/types"
)

// NewMailerMessage queues an outbound email. Locally the message also goes
// through Kafka so the dev mail worker can pick it up without AWS.
func NewMailerMessage(input *lib.SendMailInput) error {
	emailQueue := os.Getenv("EMAIL_QUEUE")
	apiEnv := os.Getenv("API_ENV")
	emailBody := types.JSONB{
		"from":      input.From,
		"from-name": input.FromName,
		"to":        input.To,
		"reply-to":  input.ReplyTo,
		"body":      input.Body,
		"html":      input.Html,
		"subject":   input.Subject,
	}
	queue := withSuffix(emailQueue)
	if apiEnv == "local" {
		if err := lib.KafkaProduceMessage("emails", queue, emailBody); err != nil {
			return fmt.Errorf("error sending message to queue: %s", err.Error())
		}
		return nil
	}
	body, err := json.Marshal(&emailBody)
	if err != nil {
		return err
	}
	if err := lib.SQSProduceMessage(queue, string(body)); err != nil {
		return fmt.Errorf("error sending message to queue: %s", err.Error())
	}
	return nil
}

func withSuffix(name string) string {
	env := lib.QueueEnvSuffix()
	if env == "" {
		return name
	}
	return fmt.Sprintf("%s-%s", name, env)
}
