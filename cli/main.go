// Package main provides a terminal client for the answer service.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/KaanSezen1923/tolkien-rag/internal/domain"
	handler "github.com/KaanSezen1923/tolkien-rag/internal/transport/http"
)

// Client talks to the HTTP API and follows one session's stage stream.
type Client struct {
	baseURL   string
	token     string
	http      *http.Client
	sessionID string
	events    *websocket.Conn
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *Client) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
			Stage string `json:"stage"`
		}
		json.Unmarshal(data, &apiErr)
		if apiErr.Kind != "" {
			return fmt.Errorf("%s failure at %s: %s", apiErr.Kind, apiErr.Stage, apiErr.Error)
		}
		return fmt.Errorf("API error [%d]: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// NewSession starts a session and subscribes to its stage events.
func (c *Client) NewSession() error {
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := c.do(http.MethodPost, "/v1/sessions/new", nil, &resp); err != nil {
		return err
	}
	return c.UseSession(resp.SessionID)
}

// UseSession switches to sessionID and follows its stage events.
func (c *Client) UseSession(sessionID string) error {
	if c.events != nil {
		c.events.Close()
		c.events = nil
	}
	c.sessionID = sessionID

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("parse address: %w", err)
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/v1/sessions/" + sessionID + "/events"
	u.RawQuery = url.Values{"access_token": {c.token}}.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Printf("Stage stream unavailable: %v", err)
		return nil
	}
	c.events = conn
	go readEvents(conn)
	return nil
}

func readEvents(conn *websocket.Conn) {
	for {
		var event domain.StageEvent
		if err := conn.ReadJSON(&event); err != nil {
			return
		}
		if event.Error != "" {
			fmt.Printf("  ▸ %s: %s\n", event.Stage, event.Error)
			continue
		}
		fmt.Printf("  ▸ %s\n", event.Stage)
	}
}

// Ask sends a query to the current session.
func (c *Client) Ask(query string) (*domain.AnswerResult, error) {
	var result domain.AnswerResult
	err := c.do(http.MethodPost, "/v1/ask", domain.AnswerRequest{
		Query:     query,
		SessionID: c.sessionID,
		RequestID: uuid.NewString(),
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// PrintSessions lists the user's sessions.
func (c *Client) PrintSessions() error {
	var resp struct {
		Sessions []domain.SessionSummary `json:"sessions"`
	}
	if err := c.do(http.MethodGet, "/v1/sessions", nil, &resp); err != nil {
		return err
	}
	for _, s := range resp.Sessions {
		marker := " "
		if s.SessionID == c.sessionID {
			marker = "*"
		}
		fmt.Printf("%s %s  %-3d %s\n", marker, s.SessionID, s.MessageCount, s.Preview)
	}
	return nil
}

// PrintHistory prints the messages of the current session.
func (c *Client) PrintHistory() error {
	var resp struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := c.do(http.MethodGet, "/v1/sessions/"+c.sessionID+"/messages", nil, &resp); err != nil {
		return err
	}
	for _, m := range resp.Messages {
		fmt.Printf("[%s] %s: %s\n", m.Timestamp.Local().Format(time.Kitchen), m.Type, m.Content)
		if m.Image != "" {
			fmt.Printf("        image: %s\n", m.Image)
		}
	}
	return nil
}

// Close closes the stage stream.
func (c *Client) Close() {
	if c.events != nil {
		c.events.Close()
	}
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "API address")
	token := flag.String("token", "", "Bearer token")
	secret := flag.String("secret", "", "Sign a token locally with this secret instead of -token")
	user := flag.String("user", "cli-user", "User id for a locally signed token")
	session := flag.String("session", "", "Continue an existing session")
	flag.Parse()

	log.SetFlags(log.Ltime)

	if *token == "" && *secret != "" {
		signed, err := handler.IssueToken([]byte(*secret), *user, 24*time.Hour)
		if err != nil {
			log.Fatalf("Failed to sign token: %v", err)
		}
		*token = signed
	}
	if *token == "" {
		log.Fatalf("Either -token or -secret is required")
	}

	client := NewClient(*addr, *token)
	defer client.Close()

	var err error
	if *session != "" {
		err = client.UseSession(*session)
	} else {
		err = client.NewSession()
	}
	if err != nil {
		log.Fatalf("Failed to open session: %v", err)
	}

	fmt.Printf("Session: %s\n", client.sessionID)
	fmt.Println("Ask anything about Middle-earth.")
	fmt.Println("Commands: /new /sessions /history /quit")
	fmt.Println()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		fmt.Println("\nInterrupted")
		client.Close()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())

		switch input {
		case "":
			continue
		case "/quit":
			fmt.Println("Bye!")
			return
		case "/new":
			if err := client.NewSession(); err != nil {
				log.Printf("New session failed: %v", err)
				continue
			}
			fmt.Printf("Session: %s\n", client.sessionID)
		case "/sessions":
			if err := client.PrintSessions(); err != nil {
				log.Printf("List failed: %v", err)
			}
		case "/history":
			if err := client.PrintHistory(); err != nil {
				log.Printf("History failed: %v", err)
			}
		default:
			result, err := client.Ask(input)
			if err != nil {
				log.Printf("Ask failed: %v", err)
				continue
			}
			fmt.Printf("\n%s\n", result.Text)
			if result.Image != nil {
				fmt.Printf("\nimage: %s\n", *result.Image)
			} else if result.ImageError != nil {
				fmt.Printf("\n(no image: %s)\n", result.ImageError.Stage)
			}
			fmt.Println()
		}
	}
}
