package test

import (
	"context"
	"fmt"
	"strconv"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// MailSMTPPort is the SMTP port of the MailHog container.
	MailSMTPPort = "1025"
	// MailAPIPort is the HTTP API port of the MailHog container, used to
	// read back the delivered receipts.
	MailAPIPort = "8025"
)

// MailContainer is a running MailHog test container.
type MailContainer struct {
	testcontainers.Container
}

// StartMailContainer starts a MailHog container that accepts any SMTP
// delivery and exposes the received messages over HTTP.
func StartMailContainer(ctx context.Context) (*MailContainer, error) {
	container, err := testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "mailhog/mailhog",
				ExposedPorts: []string{MailSMTPPort + "/tcp", MailAPIPort + "/tcp"},
				WaitingFor:   wait.ForListeningPort(nat.Port(MailSMTPPort + "/tcp")),
			},
			Started: true,
		})
	if err != nil {
		return nil, err
	}
	return &MailContainer{Container: container}, nil
}

// Endpoints returns the host and the mapped SMTP and API ports of the
// container.
func (c *MailContainer) Endpoints(ctx context.Context) (host string, smtpPort, apiPort int, err error) {
	if host, err = c.Host(ctx); err != nil {
		return "", 0, 0, err
	}
	if smtpPort, err = c.mappedPort(ctx, MailSMTPPort); err != nil {
		return "", 0, 0, err
	}
	if apiPort, err = c.mappedPort(ctx, MailAPIPort); err != nil {
		return "", 0, 0, err
	}
	return host, smtpPort, apiPort, nil
}

func (c *MailContainer) mappedPort(ctx context.Context, port string) (int, error) {
	mapped, err := c.MappedPort(ctx, nat.Port(port+"/tcp"))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(mapped.Port())
	if err != nil {
		return 0, fmt.Errorf("invalid mapped port %q: %w", mapped.Port(), err)
	}
	return n, nil
}
