package email

import (
	"context"
	"fmt"

	"github.com/rushrental/carbooking/internal/kafka"
)

type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	if event.Email == "" {
		return nil
	}
	fmt.Printf("send email to %s about %s for draft %s (booking %d, total %d cents)\n",
		event.Email, event.Type, event.DraftID, event.BookingID, event.TotalCents)
	return nil
}
