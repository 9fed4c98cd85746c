package mail

import "gopkg.in/gomail.v2"

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       string
}

// dialer is the slice of gomail.Dialer the sender needs.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}
