//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	kafkacontainer "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker for the lifetime of the test and
// returns its bootstrap address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := kafkacontainer.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafkacontainer.WithClusterID("covid-report-etl-test"),
	)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "kafka brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "find controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}), "create topic %s", topic)
}

// Report fixtures spanning both header layouts. Mainland China and China
// collapse onto one region; the New York county rows sum into one province.
const (
	report0301 = "Province/State,Country/Region,Last Update,Confirmed,Deaths,Recovered\n" +
		"Hubei,Mainland China,2020-03-01T10:13:19,66907,2761,31536\n" +
		",Italy,2020-03-01T23:23:02,1694,34,83\n" +
		",South Korea,2020-03-01T23:43:03,3736,17,30\n"

	report0302 = "Province/State,Country/Region,Last Update,Confirmed,Deaths,Recovered\n" +
		"Hubei,Mainland China,2020-03-02T15:03:23,67103,2803,33934\n" +
		",Italy,2020-03-02T20:23:16,2036,52,149\n" +
		",South Korea,2020-03-02T20:23:16,4335,28,30\n" +
		",Cruise Ship,2020-03-02T20:23:16,pending,,\n"

	report0303 = "\ufeffFIPS,Admin2,Province_State,Country_Region,Last_Update,Lat,Long_,Confirmed,Deaths,Recovered,Active,Combined_Key\n" +
		",,Hubei,China,2020-03-03 21:58:34,30.97,112.27,67217,2835,36208,28174,\"Hubei, China\"\n" +
		",,,Italy,2020-03-03 21:58:34,41.87,12.56,2502,79,160,2263,Italy\n" +
		",,,\"Korea, South\",2020-03-03 21:58:34,35.91,127.77,5186,28,30,5128,\"Korea, South\"\n" +
		"36061,New York City,New York,US,2020-03-03 21:58:34,40.76,-73.97,1,0,0,1,\"New York City, New York, US\"\n" +
		"36119,Westchester,New York,US,2020-03-03 21:58:34,41.16,-73.76,1,0,0,1,\"Westchester, New York, US\"\n"
)

func writeReports(t *testing.T, reports map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range reports {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}
