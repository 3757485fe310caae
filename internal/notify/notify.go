package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/microcosm-cc/bluemonday"

	"github.com/jschaub30/aws-demos/internal/logging"
)

const (
	subjectPrefix = "Message received: "
	subjectRunes  = 16
)

type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Fields is a contact form submission.
type Fields struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Sender interface {
	Send(ctx context.Context, f Fields) Result
}

// SNSNotifier relays contact messages to a topic whose email subscription
// delivers them to the site owner.
type SNSNotifier struct {
	client   Publisher
	topicARN string
	policy   *bluemonday.Policy
	log      *slog.Logger
}

func NewSNSNotifier(client Publisher, topicARN string, log *slog.Logger) *SNSNotifier {
	if log == nil {
		log = logging.Discard()
	}
	return &SNSNotifier{
		client:   client,
		topicARN: topicARN,
		policy:   bluemonday.StrictPolicy(),
		log:      log,
	}
}

func (n *SNSNotifier) Send(ctx context.Context, f Fields) Result {
	f = n.sanitize(f)

	body := fmt.Sprintf("name: %s\nemail: %s\nmessage: %s", f.Name, f.Email, f.Message)
	out, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(Subject(f.Message)),
		Message:  aws.String(body),
	})
	if err != nil {
		n.log.Error("publish failed", slog.String("topic", n.topicARN), slog.Any("error", err))
		return Result{Success: false, Message: fmt.Sprintf("Problem sending email: %v", err)}
	}

	n.log.Info("contact message relayed",
		slog.String("message_id", aws.ToString(out.MessageId)),
		slog.String("email", f.Email),
	)
	return Result{Success: true, Message: "sent"}
}

// sanitize strips markup. The strict policy escapes entities, which would
// show up literally in a plain-text email, so they are decoded again.
func (n *SNSNotifier) sanitize(f Fields) Fields {
	clean := func(s string) string {
		return strings.TrimSpace(html.UnescapeString(n.policy.Sanitize(s)))
	}
	return Fields{
		Name:    clean(f.Name),
		Email:   clean(f.Email),
		Message: clean(f.Message),
	}
}

// Subject builds the notification subject from the start of the message.
// SNS rejects subjects containing line breaks, so whitespace is collapsed.
func Subject(message string) string {
	s := strings.Join(strings.Fields(message), " ")
	if r := []rune(s); len(r) > subjectRunes {
		s = string(r[:subjectRunes])
	}
	return subjectPrefix + strings.TrimSpace(s)
}
