package testhelpers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type TestDynamo struct {
	Container testcontainers.Container
	Client    *dynamodb.Client
}

// SetupTestDynamo starts DynamoDB Local and returns a client pointed at it.
func SetupTestDynamo(t *testing.T) *TestDynamo {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "amazon/dynamodb-local:2.2.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"-jar", "DynamoDBLocal.jar", "-inMemory", "-sharedDb"},
			WaitingFor:   wait.ForListeningPort("8000/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "8000")
	require.NoError(t, err)

	client := dynamodb.New(dynamodb.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(fmt.Sprintf("http://%s:%s", host, port.Port())),
		Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
	})

	return &TestDynamo{Container: container, Client: client}
}

func (td *TestDynamo) Cleanup(t *testing.T) {
	require.NoError(t, td.Container.Terminate(context.Background()))
}
