package e2e

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/rakeplan/app"
	"github.com/kilianp07/rakeplan/config"
	"github.com/kilianp07/rakeplan/core/decisionlog"
	"github.com/kilianp07/rakeplan/core/factory"
	"github.com/kilianp07/rakeplan/core/model"
	"github.com/kilianp07/rakeplan/simulator"
)

const (
	influxOrg    = "e2e_org"
	influxBucket = "e2e_bucket"
	influxToken  = "e2e-token"
)

// startInflux starts an InfluxDB 2.7 container initialised with the e2e
// organisation, bucket and token.
func startInflux(ctx context.Context, t *testing.T) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "e2e",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "e2e-password",
			"DOCKER_INFLUXDB_INIT_ORG":         influxOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      influxBucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": influxToken,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "8086")
	return fmt.Sprintf("http://%s:%s", host, port.Port())
}

// startMosquitto spins up a basic Mosquitto broker for tests.
func startMosquitto(ctx context.Context, t *testing.T) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "1883")
	return fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

// Test_E2E_PlanReleaseRecord plans the sample scenario, releases it through a
// real broker to the loading point simulator and checks the plan reached
// InfluxDB and the decision log.
func Test_E2E_PlanReleaseRecord(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	influxURL := startInflux(ctx, t)
	broker := startMosquitto(ctx, t)

	cfg := config.Default()
	cfg.MQTT.Broker = broker
	cfg.MQTT.ClientID = "rakeplan-e2e"
	cfg.Release.AckTimeout = 5 * time.Second
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "influx", Conf: map[string]any{
		"url": influxURL, "token": influxToken, "org": influxOrg, "bucket": influxBucket,
	}}}
	cfg.DecisionLog = decisionlog.Config{Path: filepath.Join(t.TempDir(), "decisions.db"), Backend: decisionlog.BackendSQLite}
	cfg.DecisionLog.SetDefaults()
	cfg.Service.Scenario = filepath.Join("..", "app", "testdata", "scenario.yaml")
	cfg.Service.AutoRelease = true
	require.NoError(t, cfg.Validate())

	sim, err := simulator.New(cfg.MQTT, simulator.Config{Capacity: map[string]float64{"LP1": 2000}}, simulator.AutoAck{})
	require.NoError(t, err)
	simCtx, stopSim := context.WithCancel(ctx)
	defer stopSim()
	go func() { _ = sim.Run(simCtx) }()
	// let the simulator subscribe before the first release
	time.Sleep(time.Second)

	svc, err := app.New(&cfg)
	require.NoError(t, err)
	defer svc.Close()

	res, err := svc.Cycle(ctx)
	require.NoError(t, err)
	require.Len(t, res.Plan.Rakes, 1)
	assert.Equal(t, model.PlanExecuted, res.Plan.Status)
	assert.Equal(t, 1, sim.Stats().Accepted)

	recs, err := svc.Store().Query(ctx, decisionlog.Query{PlanID: res.Plan.ID})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	cli := NewInfluxClient(influxURL, influxOrg, influxBucket, influxToken)
	defer cli.Close()
	for _, m := range []string{"plan_run", "planned_rake", "rake_release"} {
		assert.Eventually(t, func() bool {
			n, err := cli.Count(ctx, m)
			return err == nil && n > 0
		}, 10*time.Second, 250*time.Millisecond, m)
	}
}
