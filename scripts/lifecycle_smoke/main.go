// Command lifecycle_smoke drives one feedback request through the happy path
// against a running API instance: create, fund, dispatch, accept, submit,
// complete. It mints its own tokens from the shared JWT secret, so it is only
// usable against dev/staging environments. The student account must already
// carry enough credit to fund the request.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type step struct {
	Name   string
	Method string
	Path   string
	Token  string
	Body   interface{}
	Want   int
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	var (
		base      string
		secret    string
		studentID string
		teacherID string
		timeout   time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&secret, "secret", "dev_secret", "JWT signing secret")
	flag.StringVar(&studentID, "student", "smoke-student", "student account id")
	flag.StringVar(&teacherID, "teacher", "smoke-teacher", "teacher account id")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	client := &http.Client{Timeout: timeout}
	studentToken := mustToken(secret, studentID, "STUDENT")
	teacherToken := mustToken(secret, teacherID, "TEACHER")

	createBody := map[string]interface{}{
		"teacherId":    teacherID,
		"composer":     "Chopin",
		"piece":        "Nocturne Op. 9 No. 2",
		"measureStart": 1,
		"measureEnd":   8,
		"problemType":  "voicing",
		"description":  "melody drowns under the left hand",
		"creditAmount": 10,
	}
	submitBody := map[string]interface{}{
		"comments": []map[string]interface{}{
			{"measureStart": 1, "measureEnd": 4, "text": "voice the top note, ghost the accompaniment"},
		},
		"practiceCard": map[string]interface{}{
			"section":          "mm. 1-8",
			"tempoProgression": "60 -> 96",
			"steps":            []string{"hands separate at 60", "balance drill", "hands together"},
			"dailyMinutes":     15,
		},
	}

	id := run(client, base, step{
		Name: "create", Method: http.MethodPost, Path: "/api/v1/requests",
		Token: studentToken, Body: createBody, Want: http.StatusCreated,
	})

	for _, s := range []step{
		{Name: "fund", Method: http.MethodPost, Path: "/api/v1/requests/" + id + "/fund", Token: studentToken, Want: http.StatusOK},
		{Name: "dispatch", Method: http.MethodPost, Path: "/api/v1/requests/" + id + "/dispatch", Token: studentToken, Want: http.StatusOK},
		{Name: "accept", Method: http.MethodPost, Path: "/api/v1/requests/" + id + "/accept", Token: teacherToken, Want: http.StatusOK},
		{Name: "submit", Method: http.MethodPost, Path: "/api/v1/requests/" + id + "/feedback", Token: teacherToken, Body: submitBody, Want: http.StatusOK},
		{Name: "complete", Method: http.MethodPost, Path: "/api/v1/requests/" + id + "/complete", Token: studentToken, Want: http.StatusOK},
	} {
		run(client, base, s)
	}

	log.Printf("lifecycle OK for request %s", id)
}

func run(client *http.Client, base string, s step) string {
	var payload *bytes.Buffer
	if s.Body != nil {
		raw, err := json.Marshal(s.Body)
		if err != nil {
			log.Fatalf("%s: marshal body: %v", s.Name, err)
		}
		payload = bytes.NewBuffer(raw)
	} else {
		payload = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(s.Method, base+s.Path, payload)
	if err != nil {
		log.Fatalf("%s: build request: %v", s.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.Token)

	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s: %v", s.Name, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		log.Fatalf("%s: decode response: %v", s.Name, err)
	}
	if resp.StatusCode != s.Want {
		code := ""
		if env.Error != nil {
			code = fmt.Sprintf(" (%s: %s)", env.Error.Code, env.Error.Message)
		}
		log.Fatalf("%s: got %d, want %d%s", s.Name, resp.StatusCode, s.Want, code)
	}
	log.Printf("%-8s %d", s.Name, resp.StatusCode)

	var row struct {
		ID string `json:"id"`
	}
	if len(env.Data) > 0 {
		_ = json.Unmarshal(env.Data, &row)
	}
	return row.ID
}

func mustToken(secret, userID, role string) string {
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"sub":     userID,
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	return signed
}
