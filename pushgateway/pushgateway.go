// Package pushgateway 将指标族以文本格式推送到 Prometheus Pushgateway。
//
// URL 形如 http://<addr>/metrics/job/<job>{/<label>/<value>}，分组键按标签名排序，
// 含 "/" 或为空的值使用 <label>@base64/<value> 形式。
// 只有 HTTP 202 视为成功，其余状态码返回 *TransportError。
package pushgateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/prometheus/common/expfmt"

	"github.com/ceyewan/promstore/clog"
	"github.com/ceyewan/promstore/expose"
	"github.com/ceyewan/promstore/internal/telemetry"
	"github.com/ceyewan/promstore/prom"
	"github.com/ceyewan/promstore/xerrors"
)

// ErrEmptyJob job 名称为空
var ErrEmptyJob = xerrors.Mark(xerrors.New("pushgateway: job is required"), prom.ErrUsage)

// maxBodyInError 错误中保留的响应体长度上限
const maxBodyInError = 4096

// TransportError Pushgateway 返回了非 202 状态
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("pushgateway: unexpected status code %d from %s %s: %s", e.StatusCode, e.Method, e.URL, e.Body)
}

// Unwrap 使 xerrors.Is(err, prom.ErrTransport) 成立
func (e *TransportError) Unwrap() error {
	return prom.ErrTransport
}

// Client Pushgateway 客户端，可并发使用
type Client struct {
	addr   string
	http   *http.Client
	logger clog.Logger
	ops    *telemetry.Ops
}

// New 创建客户端
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, xerrors.Mark(xerrors.New("pushgateway: config is nil"), prom.ErrConfiguration)
	}
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Mark(xerrors.Wrap(err, "invalid pushgateway config"), prom.ErrConfiguration)
	}

	o := &options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	ops, err := telemetry.NewOps(o.meter, "pushgateway")
	if err != nil {
		return nil, xerrors.Wrap(err, "create pushgateway metrics")
	}

	hc := o.httpClient
	if hc == nil {
		dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
		hc = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &http.Transport{DialContext: dialer.DialContext, Proxy: http.ProxyFromEnvironment},
		}
	}

	addr := strings.TrimSuffix(cfg.Addr, "/")
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{
		addr:   addr,
		http:   hc,
		logger: o.logger,
		ops:    ops,
	}, nil
}

// Push 用 src 的全部指标替换该 job（及分组键）下的已有指标，对应 HTTP PUT
func (c *Client) Push(ctx context.Context, src expose.Source, job string, groupingKey map[string]string) error {
	return c.send(ctx, http.MethodPut, src, job, groupingKey)
}

// PushAdd 只替换同名指标，对应 HTTP POST
func (c *Client) PushAdd(ctx context.Context, src expose.Source, job string, groupingKey map[string]string) error {
	return c.send(ctx, http.MethodPost, src, job, groupingKey)
}

// Delete 删除该 job（及分组键）下的全部指标，对应 HTTP DELETE
func (c *Client) Delete(ctx context.Context, job string, groupingKey map[string]string) error {
	return c.send(ctx, http.MethodDelete, nil, job, groupingKey)
}

// URL 返回 job 与分组键对应的推送地址
func (c *Client) URL(job string, groupingKey map[string]string) string {
	var b strings.Builder
	b.WriteString(c.addr)
	b.WriteString("/metrics")
	writeComponent(&b, "job", job)

	names := make([]string, 0, len(groupingKey))
	for name := range groupingKey {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		writeComponent(&b, name, groupingKey[name])
	}
	return b.String()
}

// base64Suffix 标记路径中的值经过 base64url 编码
const base64Suffix = "@base64"

// writeComponent 写入一段 /name/value。
// 含 "/" 或为空的值无法直接放进路径，改用 name@base64 形式，空值写作 "="。
func writeComponent(b *strings.Builder, name, value string) {
	b.WriteString("/")
	switch {
	case value == "":
		b.WriteString(name + base64Suffix + "/=")
	case strings.Contains(value, "/"):
		b.WriteString(name + base64Suffix + "/")
		b.WriteString(base64.RawURLEncoding.EncodeToString([]byte(value)))
	default:
		b.WriteString(name + "/")
		b.WriteString(url.PathEscape(value))
	}
}

func (c *Client) send(ctx context.Context, method string, src expose.Source, job string, groupingKey map[string]string) (err error) {
	op := strings.ToLower(method)
	ctx, end := c.ops.Start(ctx, op)
	defer func() { end(err) }()

	if job == "" {
		return ErrEmptyJob
	}
	target := c.URL(job, groupingKey)

	var body io.Reader
	if src != nil {
		families, err := src.GetMetricFamilySamples(ctx)
		if err != nil {
			return xerrors.Wrap(err, "collect metrics")
		}
		var buf bytes.Buffer
		if err := expose.Render(&buf, families); err != nil {
			return xerrors.Wrap(err, "render metrics")
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return xerrors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "pushgateway request failed",
			clog.String("method", method), clog.String("url", target), clog.Error(err))
		return xerrors.Mark(xerrors.Wrapf(err, "%s %s", method, target), prom.ErrTransport)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyInError))
		c.logger.ErrorContext(ctx, "pushgateway rejected request",
			clog.String("method", method), clog.String("url", target), clog.Int("status", resp.StatusCode))
		return &TransportError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: string(data)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.DebugContext(ctx, "pushgateway request accepted",
		clog.String("method", method), clog.String("url", target))
	return nil
}
