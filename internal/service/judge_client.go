package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ucode_backend/internal/config"
	"ucode_backend/internal/util"
	"ucode_backend/pkg/tracing"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

// JudgeRun 判题服务对一次运行的结果
type JudgeRun struct {
	Stdout        string
	Stderr        string
	CompileOutput string
	StatusID      int
	Status        string
}

// CodeJudge 运行一段代码并返回输出
type CodeJudge interface {
	Run(ctx context.Context, language, source, stdin string) (*JudgeRun, error)
}

var ErrJudgeTimeout = errors.New("judge did not finish in time")

// Judge0 状态：1 排队中，2 运行中，其余为结束
const (
	judge0StatusInQueue    = 1
	judge0StatusProcessing = 2
)

type Judge0Client struct {
	Cfg        config.Judge0Config
	HTTPClient *http.Client
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewJudge0Client(cfg config.Judge0Config) *Judge0Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Judge0Client{
		Cfg:        cfg,
		HTTPClient: &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type judge0Submission struct {
	LanguageID int    `json:"language_id"`
	SourceCode string `json:"source_code"`
	Stdin      string `json:"stdin"`
}

type judge0Result struct {
	Token         string  `json:"token"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Status        *struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (c *Judge0Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := strings.TrimRight(c.Cfg.URL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Cfg.APIKey != "" {
		req.Header.Set("x-rapidapi-key", c.Cfg.APIKey)
	}
	if c.Cfg.Host != "" {
		req.Header.Set("x-rapidapi-host", c.Cfg.Host)
	}
	return req, nil
}

func (c *Judge0Client) do(req *http.Request, out interface{}) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("judge0 returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Run 提交后轮询结果，直到结束或超过最大轮询次数
func (c *Judge0Client) Run(ctx context.Context, language, source, stdin string) (run *JudgeRun, err error) {
	ctx, span := tracing.StartSpan(ctx, "judge0.Run", attribute.String("language", language))
	defer func() { tracing.EndSpan(span, err) }()

	languageID, ok := util.Judge0LanguageIDs[language]
	if !ok {
		return nil, util.ErrUnsupportedLanguage
	}

	body, err := json.Marshal(judge0Submission{
		LanguageID: languageID,
		SourceCode: source,
		Stdin:      stdin,
	})
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/submissions",
		url.Values{"base64_encoded": {"false"}, "wait": {"false"}}, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var created judge0Result
	if err := c.do(req, &created); err != nil {
		return nil, err
	}
	if created.Token == "" {
		return nil, errors.New("judge0 returned no submission token")
	}

	maxPolls := c.Cfg.MaxPolls
	if maxPolls <= 0 {
		maxPolls = 10
	}
	interval := c.Cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	query := url.Values{"base64_encoded": {"false"}, "fields": {"stdout,stderr,compile_output,status"}}
	for i := 0; i < maxPolls; i++ {
		if err := c.sleep(ctx, interval); err != nil {
			return nil, err
		}

		req, err := c.newRequest(ctx, http.MethodGet, "/submissions/"+url.PathEscape(created.Token), query, nil)
		if err != nil {
			return nil, err
		}
		var result judge0Result
		if err := c.do(req, &result); err != nil {
			return nil, err
		}
		if result.Status == nil {
			continue
		}
		if result.Status.ID == judge0StatusInQueue || result.Status.ID == judge0StatusProcessing {
			continue
		}

		return &JudgeRun{
			Stdout:        deref(result.Stdout),
			Stderr:        deref(result.Stderr),
			CompileOutput: deref(result.CompileOutput),
			StatusID:      result.Status.ID,
			Status:        result.Status.Description,
		}, nil
	}
	return nil, ErrJudgeTimeout
}

// JudgeStdin 非空输入末尾补换行
func JudgeStdin(input string) string {
	if input == "" {
		return ""
	}
	return input + "\n"
}

// OutputMatches 程序输出需与期望输出加一个换行完全一致
func OutputMatches(stdout, expected string) bool {
	return stdout == expected+"\n"
}
