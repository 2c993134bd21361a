// Package test provides the containers and the fake Stripe backend shared by
// the integration tests of the payment gateway.
package test

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MongoPort is the port MongoDB listens on inside the test container.
const MongoPort = "27017"

// MongoContainer is a running MongoDB test container.
type MongoContainer struct {
	testcontainers.Container
}

// StartMongoContainer starts a single node MongoDB 7 container.
func StartMongoContainer(ctx context.Context) (*MongoContainer, error) {
	port := fmt.Sprintf("%s/tcp", MongoPort)
	container, err := testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "mongo:7",
				ExposedPorts: []string{port},
				WaitingFor: wait.ForAll(
					wait.ForLog("Waiting for connections"),
					wait.ForListeningPort(nat.Port(port)),
				),
			},
			Started: true,
		})
	if err != nil {
		return nil, err
	}
	return &MongoContainer{Container: container}, nil
}

// ConnectionString returns the mongodb:// URL of the container.
func (c *MongoContainer) ConnectionString(ctx context.Context) (string, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := c.MappedPort(ctx, nat.Port(MongoPort+"/tcp"))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("mongodb://%s:%s", host, port.Port()), nil
}

// RandomDatabaseName returns a database name unique enough to isolate tests
// sharing a container.
func RandomDatabaseName() string {
	return fmt.Sprintf("paydesk-test-%d", rand.IntN(1<<30))
}
