package hacienda

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(testURL string) Config {
	return Config{
		TestBaseURL:       testURL,
		ProductionBaseURL: "https://api.dtes.mh.gob.sv",
		AuthTimeout:       5 * time.Second,
		SubmitTimeout:     5 * time.Second,
		QueryTimeout:      5 * time.Second,
	}
}

func TestNewClient_ConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid config",
			config:  testConfig("https://apitest.dtes.mh.gob.sv"),
			wantErr: false,
		},
		{
			name: "missing test URL",
			config: Config{
				ProductionBaseURL: "https://api.dtes.mh.gob.sv",
			},
			wantErr: true,
		},
		{
			name: "missing production URL",
			config: Config{
				TestBaseURL: "https://apitest.dtes.mh.gob.sv",
			},
			wantErr: true,
		},
		{
			name: "test and production cross-wired",
			config: Config{
				TestBaseURL:       "https://api.dtes.mh.gob.sv",
				ProductionBaseURL: "https://api.dtes.mh.gob.sv",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.config)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				assert.Nil(t, client)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, client)
			}
		})
	}
}

func TestAuthenticate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, authPath, r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "0614-290986-102-3", r.PostFormValue("user"))
		assert.Equal(t, "api-password", r.PostFormValue("pwd"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "OK",
			"body":   map[string]interface{}{"token": "Bearer abc123", "roles": []string{}},
		})
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	token, err := client.Authenticate(context.Background(), EnvironmentTest, Credentials{
		User:     "0614-290986-102-3",
		Password: "api-password",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc123", token)
}

func TestAuthenticate_BadCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ERROR",
			"error":  "invalid credentials",
		})
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.Authenticate(context.Background(), EnvironmentTest, Credentials{User: "u", Password: "p"})
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "ERROR", authErr.Status)
	assert.Equal(t, "invalid credentials", authErr.Message)
}

func TestAuthenticate_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	_, err = client.Authenticate(context.Background(), EnvironmentTest, Credentials{User: "u", Password: "p"})
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "UNREACHABLE", authErr.Status)
}

func TestSubmitDocument_Classification(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		body        interface{}
		wantOutcome Outcome
		wantStamp   string
	}{
		{
			name:       "processed is accepted",
			statusCode: http.StatusOK,
			body: map[string]interface{}{
				"estado":          "PROCESADO",
				"selloRecibido":   "2025SELLO001",
				"codigoMsg":       "001",
				"descripcionMsg":  "RECIBIDO",
				"fhProcesamiento": "28/08/2026 10:00:00",
			},
			wantOutcome: OutcomeAccepted,
			wantStamp:   "2025SELLO001",
		},
		{
			name:       "rechazado is rejected",
			statusCode: http.StatusOK,
			body: map[string]interface{}{
				"estado":         "RECHAZADO",
				"codigoMsg":      "92",
				"descripcionMsg": "NIT del emisor no coincide",
			},
			wantOutcome: OutcomeRejected,
		},
		{
			name:        "unauthorized means stale token",
			statusCode:  http.StatusUnauthorized,
			body:        map[string]interface{}{},
			wantOutcome: OutcomeTokenExpired,
		},
		{
			name:        "forbidden means stale token",
			statusCode:  http.StatusForbidden,
			body:        map[string]interface{}{},
			wantOutcome: OutcomeTokenExpired,
		},
		{
			name:        "throttled is transient",
			statusCode:  http.StatusTooManyRequests,
			body:        map[string]interface{}{},
			wantOutcome: OutcomeTransient,
		},
		{
			name:        "server error is transient",
			statusCode:  http.StatusInternalServerError,
			body:        map[string]interface{}{},
			wantOutcome: OutcomeTransient,
		},
		{
			name:        "uncommitted answer is transient",
			statusCode:  http.StatusOK,
			body:        map[string]interface{}{"estado": "EN_PROCESO"},
			wantOutcome: OutcomeTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, receptionPath, r.URL.Path)
				assert.Equal(t, "token-1", r.Header.Get("Authorization"))

				var req ReceptionRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "00", req.Ambiente)
				assert.Equal(t, "01", req.TipoDte)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.statusCode)
				json.NewEncoder(w).Encode(tt.body)
			}))
			defer server.Close()

			client, err := NewClient(testConfig(server.URL))
			require.NoError(t, err)

			result, err := client.SubmitDocument(context.Background(), EnvironmentTest, "token-1", ReceptionRequest{
				IDEnvio:   1,
				Version:   1,
				TipoDte:   "01",
				Documento: "signed-jws",
			})
			require.NoError(t, err)
			require.NotNil(t, result)

			assert.Equal(t, tt.wantOutcome, result.Outcome)
			assert.Equal(t, tt.statusCode, result.HTTPStatus)
			if tt.wantStamp != "" {
				assert.Equal(t, tt.wantStamp, result.Stamp)
			}
		})
	}
}

func TestSubmitDocument_NetworkFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	result, err := client.SubmitDocument(context.Background(), EnvironmentTest, "token-1", ReceptionRequest{
		TipoDte:   "01",
		Documento: "signed-jws",
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, OutcomeTransient, result.Outcome)
	assert.NotEmpty(t, result.Description)
}

func TestQueryStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, queryPath+"A1B2C3D4-0000-0000-0000-000000000001", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"estado":        "PROCESADO",
			"selloRecibido": "2025SELLO001",
		})
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	status, err := client.QueryStatus(context.Background(), EnvironmentTest, "token-1", "A1B2C3D4-0000-0000-0000-000000000001")
	require.NoError(t, err)
	assert.Equal(t, "PROCESADO", status.Estado)
	assert.Equal(t, "2025SELLO001", status.SelloRecibido)
}

func TestEnvironmentCode(t *testing.T) {
	assert.Equal(t, "00", EnvironmentTest.Code())
	assert.Equal(t, "01", EnvironmentProduction.Code())
	assert.True(t, EnvironmentTest.Valid())
	assert.True(t, EnvironmentProduction.Valid())
	assert.False(t, Environment("staging").Valid())
}
