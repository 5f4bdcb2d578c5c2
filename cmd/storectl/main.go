// storectl is a CLI tool for exercising the storefront gateway.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	storectl products -gateway URL
//	storectl collection -gateway URL -name NAME
//	storectl product -gateway URL -name NAME -slug SLUG
//	storectl cart -gateway URL
//	storectl add -gateway URL -item ID [-qty N]
//	storectl qty -gateway URL -line ID -qty N
//	storectl rm -gateway URL -line ID
//	storectl clear -gateway URL
//	storectl checkout -gateway URL [-return URL]
//
// The visitor session cookie is persisted in a local file so consecutive
// commands operate on the same cart:
//
//	storectl add -gateway http://localhost:8080 -item 5d1f...
//	storectl cart -gateway http://localhost:8080
//	storectl checkout -gateway http://localhost:8080
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

var client = &http.Client{Timeout: 30 * time.Second}

// Global flags (apply to all commands)
var (
	gatewayURL string
	quiet      bool
)

// ANSI color codes
var (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
	colorBold  = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		colorReset, colorRed, colorGreen, colorCyan, colorBold = "", "", "", "", ""
	}
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "products":
		err = cmdProducts(args)
	case "collection":
		err = cmdCollection(args)
	case "product":
		err = cmdProduct(args)
	case "cart":
		err = cmdCart(args)
	case "add":
		err = cmdAdd(args)
	case "qty":
		err = cmdQty(args)
	case "rm":
		err = cmdRemove(args)
	case "clear":
		err = cmdClear(args)
	case "checkout":
		err = cmdCheckout(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%serror:%s %v\n", colorRed, colorReset, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `storectl - storefront gateway client

Usage:
  storectl products   -gateway URL
  storectl collection -gateway URL -name NAME
  storectl product    -gateway URL -name NAME -slug SLUG
  storectl cart       -gateway URL
  storectl add        -gateway URL -item CATALOG_ID [-qty N]
  storectl qty        -gateway URL -line LINE_ID -qty N
  storectl rm         -gateway URL -line LINE_ID
  storectl clear      -gateway URL
  storectl checkout   -gateway URL [-return URL]
`)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&gatewayURL, "gateway", "http://localhost:8080", "gateway base URL")
	fs.BoolVar(&quiet, "q", false, "print only the essential output")
	return fs
}

// === Commands ===

func cmdProducts(args []string) error {
	fs := newFlagSet("products")
	fs.Parse(args)
	return getJSON("/products")
}

func cmdCollection(args []string) error {
	fs := newFlagSet("collection")
	name := fs.String("name", "", "collection name")
	fs.Parse(args)
	if *name == "" {
		return fmt.Errorf("-name is required")
	}
	return getJSON("/collections/" + *name + "/products")
}

func cmdProduct(args []string) error {
	fs := newFlagSet("product")
	name := fs.String("name", "", "collection name")
	slug := fs.String("slug", "", "product slug")
	fs.Parse(args)
	if *name == "" || *slug == "" {
		return fmt.Errorf("-name and -slug are required")
	}
	return getJSON("/collections/" + *name + "/products/" + *slug)
}

func cmdCart(args []string) error {
	fs := newFlagSet("cart")
	fs.Parse(args)
	return do(http.MethodGet, "/cart", nil)
}

func cmdAdd(args []string) error {
	fs := newFlagSet("add")
	item := fs.String("item", "", "catalog item ID")
	qty := fs.Int("qty", 1, "quantity")
	fs.Parse(args)
	if *item == "" {
		return fmt.Errorf("-item is required")
	}
	return do(http.MethodPost, "/cart/items", map[string]interface{}{
		"catalog_item_id": *item,
		"quantity":        *qty,
	})
}

func cmdQty(args []string) error {
	fs := newFlagSet("qty")
	line := fs.String("line", "", "cart line item ID")
	qty := fs.Int("qty", -1, "new quantity (0 removes)")
	fs.Parse(args)
	if *line == "" || *qty < 0 {
		return fmt.Errorf("-line and -qty are required")
	}
	return do(http.MethodPut, "/cart/items/"+*line, map[string]interface{}{
		"quantity": *qty,
	})
}

func cmdRemove(args []string) error {
	fs := newFlagSet("rm")
	line := fs.String("line", "", "cart line item ID")
	fs.Parse(args)
	if *line == "" {
		return fmt.Errorf("-line is required")
	}
	return do(http.MethodDelete, "/cart/items/"+*line, nil)
}

func cmdClear(args []string) error {
	fs := newFlagSet("clear")
	fs.Parse(args)
	return do(http.MethodDelete, "/cart", nil)
}

func cmdCheckout(args []string) error {
	fs := newFlagSet("checkout")
	returnURL := fs.String("return", "", "post-checkout return URL")
	fs.Parse(args)

	body := map[string]interface{}{}
	if *returnURL != "" {
		body["return_url"] = *returnURL
	}
	return do(http.MethodPost, "/checkout", body)
}

// === HTTP Helpers ===

func getJSON(path string) error {
	return do(http.MethodGet, path, nil)
}

// do sends one request, carrying the saved session cookie and persisting
// any refreshed cookie the gateway sets.
func do(method, path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, gatewayURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie := loadCookie(); cookie != "" {
		req.Header.Set("Cookie", "session="+cookie)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			saveCookie(c.Value)
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if !quiet {
		status := colorGreen
		if resp.StatusCode >= 400 {
			status = colorRed
		}
		fmt.Fprintf(os.Stderr, "%s%s %s%s %s%d%s\n",
			colorBold, method, path, colorReset, status, resp.StatusCode, colorReset)
	}

	printPretty(data)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}

// printPretty re-indents JSON output when possible.
func printPretty(data []byte) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		os.Stdout.Write(data)
		return
	}
	fmt.Printf("%s%s%s\n", colorCyan, buf.String(), colorReset)
}

// === Session Cookie Persistence ===

func cookiePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "storectl-session")
}

func loadCookie() string {
	data, err := os.ReadFile(cookiePath())
	if err != nil {
		return ""
	}
	return string(bytes.TrimSpace(data))
}

func saveCookie(value string) {
	_ = os.WriteFile(cookiePath(), []byte(value), 0o600)
}
