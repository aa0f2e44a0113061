package email

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/andreyrocca-psiq/qsm-h-app/internal/config"
)

type Service interface {
	SendInviteNotice(ctx context.Context, to, inviterName string) error
	SendDeletionScheduled(ctx context.Context, to string, scheduledFor time.Time) error
	SendDeletionCompleted(ctx context.Context, to string) error
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPService(cfg config.EmailConfig) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendInviteNotice(ctx context.Context, to, inviterName string) error {
	body := fmt.Sprintf(
		"Você recebeu um convite de compartilhamento de dados de %s. Acesse o QSM-H para aceitar ou recusar.",
		inviterName,
	)
	return s.send(to, "QSM-H: novo convite de conexão", body)
}

func (s *smtpService) SendDeletionScheduled(ctx context.Context, to string, scheduledFor time.Time) error {
	body := fmt.Sprintf(
		"Sua solicitação de exclusão de dados foi registrada e será processada em %s. Você pode cancelá-la até essa data.",
		scheduledFor.Format("02/01/2006"),
	)
	return s.send(to, "QSM-H: solicitação de exclusão registrada", body)
}

func (s *smtpService) SendDeletionCompleted(ctx context.Context, to string) error {
	return s.send(to, "QSM-H: exclusão de dados concluída",
		"Seus dados foram excluídos permanentemente, conforme solicitado.")
}

func (s *smtpService) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
