// relayctl is a CLI tool for exercising a running checkout relay.
// Each command performs a single operation, making it composable for scripts.
//
// Examples:
//
//	NSU=$(relayctl -q link --item c1:Curso:199.90:1:course --name Maria)
//	relayctl confirm --order-nsu $NSU --transaction-nsu tx-1 --method pix --amount 19990
//	relayctl cancel --order-nsu $NSU
//	relayctl task --file order.json --idempotency-key order-1
//	relayctl relay --file summary.json
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dunglas/httpsfv"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"checkout-relay/internal/cart"
	"checkout-relay/internal/model"
)

var client = &http.Client{Timeout: 30 * time.Second}

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorCyan, colorGray, colorBold = "", "", ""
}

func main() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}

	app := &cli.App{
		Name:  "relayctl",
		Usage: "Drive a checkout relay from the command line",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "relay",
				Aliases: []string{"r"},
				Usage:   "Relay base URL",
				Value:   "http://localhost:8080",
				EnvVars: []string{"RELAY_URL"},
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Print only the essential value (order nonce, task id)",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("no-color") {
				disableColors()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "link",
				Usage: "Build a cart and create a checkout link",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "item",
						Aliases:  []string{"i"},
						Usage:    "Cart line as id:name:price[:qty[:kind]] (repeatable)",
						Required: true,
					},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Order description (default: item names)"},
					&cli.StringFlag{Name: "name", Usage: "Customer name"},
					&cli.StringFlag{Name: "email", Usage: "Customer email"},
					&cli.StringFlag{Name: "phone", Usage: "Customer phone"},
					&cli.StringFlag{Name: "cpf", Usage: "Customer CPF"},
					&cli.StringFlag{Name: "method", Usage: "Payment method (pix or card)"},
					&cli.StringFlag{Name: "origin", Usage: "Origin header sent to the relay"},
				},
				Action: linkCommand,
			},
			{
				Name:  "confirm",
				Usage: "Simulate the payment provider's success redirect",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "order-nsu", Required: true},
					&cli.StringFlag{Name: "transaction-nsu"},
					&cli.StringFlag{Name: "method", Usage: "capture_method (pix, credit_card)"},
					&cli.Int64Flag{Name: "amount", Usage: "Amount paid in centavos"},
					&cli.StringFlag{Name: "slug"},
					&cli.StringFlag{Name: "receipt-url"},
					&cli.StringFlag{Name: "path", Value: "/checkout/success", Usage: "Success redirect path"},
				},
				Action: confirmCommand,
			},
			{
				Name:  "cancel",
				Usage: "Simulate the payment provider's cancel redirect",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "order-nsu"},
					&cli.StringFlag{Name: "path", Value: "/checkout/cancel", Usage: "Cancel redirect path"},
				},
				Action: cancelCommand,
			},
			{
				Name:  "task",
				Usage: "Create a task from a JSON task request",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "JSON file, - for stdin", Required: true},
					&cli.StringFlag{Name: "idempotency-key", Aliases: []string{"k"}, Usage: "Idempotency-Key sent with the request"},
				},
				Action: func(c *cli.Context) error {
					return postFileCommand(c, "/api/clickup-task")
				},
			},
			{
				Name:  "relay",
				Usage: "Relay a flat order summary as a task",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "JSON file, - for stdin", Required: true},
					&cli.StringFlag{Name: "idempotency-key", Aliases: []string{"k"}, Usage: "Idempotency-Key sent with the request"},
				},
				Action: func(c *cli.Context) error {
					return postFileCommand(c, "/api/orders")
				},
			},
			{
				Name:  "health",
				Usage: "Check that the relay is up",
				Action: func(c *cli.Context) error {
					_, err := newRequester(c).do(http.MethodGet, "/health", nil, nil)
					return err
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s✗ %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

func linkCommand(c *cli.Context) error {
	crt := cart.New()
	for _, spec := range c.StringSlice("item") {
		item, err := parseItem(spec)
		if err != nil {
			return err
		}
		if err := crt.Add(item); err != nil {
			return fmt.Errorf("item %q: %w", spec, err)
		}
	}

	var customer *model.Customer
	if c.String("name") != "" || c.String("email") != "" || c.String("phone") != "" || c.String("cpf") != "" {
		customer = &model.Customer{
			Name:  c.String("name"),
			Email: c.String("email"),
			Phone: c.String("phone"),
			CPF:   c.String("cpf"),
		}
	}

	description := c.String("description")
	if description == "" {
		description = describe(crt.Items())
	}

	in, err := crt.CheckoutInput(description, customer, model.PaymentMethod(c.String("method")))
	if err != nil {
		return err
	}

	r := newRequester(c)
	r.printInfo("cart: %d items, total %s", crt.Count(), model.FormatBRL(in.Amount))

	headers := map[string]string{}
	if origin := c.String("origin"); origin != "" {
		headers["Origin"] = origin
	}
	resp, err := r.do(http.MethodPost, "/api/checkout-link", in, headers)
	if err != nil {
		return err
	}

	nsu, _ := resp["order_nsu"].(string)
	if r.quiet {
		fmt.Println(nsu)
		return nil
	}
	r.printSuccess("checkout link created: %v", resp["url"])
	return nil
}

func confirmCommand(c *cli.Context) error {
	q := url.Values{}
	q.Set("order_nsu", c.String("order-nsu"))
	setIf(q, "transaction_nsu", c.String("transaction-nsu"))
	setIf(q, "capture_method", c.String("method"))
	setIf(q, "slug", c.String("slug"))
	setIf(q, "receipt_url", c.String("receipt-url"))
	if c.IsSet("amount") {
		q.Set("amount", strconv.FormatInt(c.Int64("amount"), 10))
	}

	r := newRequester(c)
	resp, err := r.do(http.MethodGet, c.String("path")+"?"+q.Encode(), nil, nil)
	if err != nil {
		return err
	}

	task, _ := resp["task"].(map[string]interface{})
	if r.quiet {
		fmt.Println(task["task_id"])
		return nil
	}
	switch task["state"] {
	case "created":
		r.printSuccess("task created: %v", task["task_id"])
	case "failed":
		r.printWarning("payment approved, task failed: %v", task["error"])
	default:
		r.printInfo("task %v: %v", task["state"], task["reason"])
	}
	return nil
}

func cancelCommand(c *cli.Context) error {
	path := c.String("path")
	if nsu := c.String("order-nsu"); nsu != "" {
		path += "?" + url.Values{"order_nsu": {nsu}}.Encode()
	}
	_, err := newRequester(c).do(http.MethodGet, path, nil, nil)
	return err
}

func postFileCommand(c *cli.Context, path string) error {
	data, err := readInput(c.String("file"))
	if err != nil {
		return err
	}
	if !json.Valid(data) {
		return fmt.Errorf("%s: not valid JSON", c.String("file"))
	}

	headers := map[string]string{}
	if key := c.String("idempotency-key"); key != "" {
		v, err := idempotencyHeader(key)
		if err != nil {
			return err
		}
		headers["Idempotency-Key"] = v
	}

	r := newRequester(c)
	resp, err := r.do(http.MethodPost, path, json.RawMessage(data), headers)
	if err != nil {
		return err
	}
	if r.quiet {
		fmt.Println(resp["task_id"])
		return nil
	}
	r.printSuccess("task created: %v", resp["task_id"])
	return nil
}

// =============================================================================
// PARSING
// =============================================================================

// parseItem parses "id:name:price[:qty[:kind]]". Price is in reais.
func parseItem(spec string) (cart.Item, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 3 || len(parts) > 5 {
		return cart.Item{}, fmt.Errorf("item %q: want id:name:price[:qty[:kind]]", spec)
	}

	price, err := decimal.NewFromString(strings.Replace(strings.TrimSpace(parts[2]), ",", ".", 1))
	if err != nil {
		return cart.Item{}, fmt.Errorf("item %q: invalid price: %w", spec, err)
	}

	item := cart.Item{
		ID:        strings.TrimSpace(parts[0]),
		Name:      strings.TrimSpace(parts[1]),
		UnitPrice: price,
		Quantity:  1,
	}
	if len(parts) > 3 && strings.TrimSpace(parts[3]) != "" {
		if item.Quantity, err = strconv.Atoi(strings.TrimSpace(parts[3])); err != nil {
			return cart.Item{}, fmt.Errorf("item %q: invalid quantity: %w", spec, err)
		}
	}
	if len(parts) > 4 {
		item.Kind = model.ProductKind(strings.ToLower(strings.TrimSpace(parts[4])))
	}
	return item, nil
}

// describe joins item names for the default order description.
func describe(items []cart.Item) string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		name := it.Name
		if name == "" {
			name = it.ID
		}
		if it.Quantity > 1 {
			name = fmt.Sprintf("%dx %s", it.Quantity, name)
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

// idempotencyHeader serializes key as a structured-field string.
func idempotencyHeader(key string) (string, error) {
	v, err := httpsfv.Marshal(httpsfv.NewItem(key))
	if err != nil {
		return "", fmt.Errorf("idempotency key %q: %w", key, err)
	}
	return v, nil
}

func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

func setIf(q url.Values, key, val string) {
	if val != "" {
		q.Set(key, val)
	}
}

// =============================================================================
// HTTP
// =============================================================================

type requester struct {
	baseURL string
	quiet   bool
	out     io.Writer
}

func newRequester(c *cli.Context) *requester {
	return &requester{
		baseURL: strings.TrimSuffix(c.String("relay"), "/"),
		quiet:   c.Bool("quiet"),
		out:     os.Stdout,
	}
}

// do sends a request and decodes the JSON object response.
func (r *requester) do(method, path string, body interface{}, headers map[string]string) (map[string]interface{}, error) {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	req, err := http.NewRequest(method, r.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if !r.quiet {
		r.printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if !r.quiet {
		r.printResponse(resp.StatusCode, respBody, duration)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return result, nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func (r *requester) printRequest(method, path string, body []byte) {
	fmt.Fprintf(r.out, "\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		r.printJSON(body, "  ")
	}
}

func (r *requester) printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Fprintf(r.out, "\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	r.printJSON(body, "  ")
}

func (r *requester) printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Fprintf(r.out, "%s%s\n", prefix, string(data))
		return
	}
	fmt.Fprintln(r.out, prefix+pretty.String())
}

func (r *requester) printSuccess(format string, args ...interface{}) {
	if !r.quiet {
		fmt.Fprintf(r.out, "%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func (r *requester) printWarning(format string, args ...interface{}) {
	fmt.Fprintf(r.out, "%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func (r *requester) printInfo(format string, args ...interface{}) {
	if !r.quiet {
		fmt.Fprintf(r.out, "%s→ %s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
	}
}
