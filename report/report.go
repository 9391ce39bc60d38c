// Package report delivers a decoded serving-cell field set to the configured
// output sinks: stdout JSON, the metadata service (HTTP PUT), the unified
// UDP endpoint, and optionally an MQTT topic.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"i4.energy/across/cellinfo/qeng"
)

// JSON writes the field set as a single JSON object line.
func JSON(w io.Writer, info qeng.Info) error {
	body, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	body = append(body, '\n')
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Tag is one metadata service tag entry. Values are stringified regardless
// of their decoded type, matching the service's tag model.
type Tag struct {
	TagName  string `json:"tagName"`
	TagValue string `json:"tagValue"`
}

// Tags converts the field set into metadata tags, sorted by name so the
// request body is deterministic.
func Tags(info qeng.Info) []Tag {
	tags := make([]Tag, 0, len(info))
	for k, v := range info {
		tags = append(tags, Tag{TagName: k, TagValue: fmt.Sprint(v)})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].TagName < tags[j].TagName })
	return tags
}

// Metadata PUTs the field set to the metadata service as tag values and
// returns the response body, which is non-empty when the service reports
// back the updated tag state.
func Metadata(ctx context.Context, client *http.Client, url string, info qeng.Info) (string, error) {
	body, err := json.Marshal(Tags(info))
	if err != nil {
		return "", fmt.Errorf("encode metadata tags: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build metadata request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("put metadata: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read metadata response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("put metadata: unexpected status %s", resp.Status)
	}
	return string(respBody), nil
}

// UDP sends the field set as a single JSON datagram to the unified endpoint.
func UDP(addr string, info qeng.Info) error {
	body, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolve udp endpoint %q: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return fmt.Errorf("dial udp endpoint %q: %w", addr, err)
	}
	defer conn.Close()

	if _, err := conn.Write(body); err != nil {
		return fmt.Errorf("send udp report: %w", err)
	}
	return nil
}

// MQTT publishes the field set as a JSON object to the given topic at QoS 0
// and disconnects. Connect and publish each respect the context deadline.
func MQTT(ctx context.Context, broker, clientID, topic string, info qeng.Info) error {
	body, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetConnectRetry(false)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); !waitToken(ctx, token) {
		return fmt.Errorf("mqtt connect %q: %w", broker, tokenErr(ctx, token))
	}
	defer client.Disconnect(250)

	if token := client.Publish(topic, 0, false, body); !waitToken(ctx, token) {
		return fmt.Errorf("mqtt publish %q: %w", topic, tokenErr(ctx, token))
	}
	return nil
}

func waitToken(ctx context.Context, token mqtt.Token) bool {
	deadline, ok := ctx.Deadline()
	if !ok {
		return token.Wait() && token.Error() == nil
	}
	return token.WaitTimeout(time.Until(deadline)) && token.Error() == nil
}

func tokenErr(ctx context.Context, token mqtt.Token) error {
	if err := token.Error(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return context.DeadlineExceeded
}
