package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certledger/internal/ledger"
	"certledger/internal/ledger/ethkey"
	"certledger/internal/ledger/simulated"
)

const certHash = "0xabcdef1234567890abcdef1234567890abcdef1234567890abcdef1234567890"

// gateway serves the JSON-RPC surface on top of a simulated ledger.
type gateway struct {
	t      *testing.T
	ledger *simulated.Ledger
}

func (g *gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req Request
	require.NoError(g.t, json.NewDecoder(r.Body).Decode(&req))
	ctx := r.Context()

	var (
		result any
		err    error
	)
	switch req.Method {
	case MethodRegisterCertificate:
		var p RegisterCertificateParams
		require.NoError(g.t, json.Unmarshal(req.Params, &p))
		result, err = g.receipt(g.ledger.RegisterCertificate(ctx, ledger.CertificateSubmission{
			Key:         p.CertificateHash,
			StudentName: p.StudentName,
			IssueDate:   p.IssueDate,
			Authority:   ledger.Authority{PrivateKey: p.Authority.PrivateKey, Address: p.Authority.Address},
		}))
	case MethodGetCertificate:
		var p GetCertificateParams
		require.NoError(g.t, json.Unmarshal(req.Params, &p))
		lookup, lerr := g.ledger.GetCertificate(ctx, p.CertificateHash)
		switch {
		case lerr != nil:
			err = lerr
		case !lookup.Found:
			g.write(w, Response{JSONRPC: "2.0", ID: req.ID, Error: &RPCError{Code: CodeNotFound, Message: "certificate not found"}})
			return
		default:
			result = CertificateResult{
				StudentName:      lookup.View.StudentName,
				IssueDate:        lookup.View.IssueDate,
				AuthorityAddress: lookup.View.AuthorityAddress,
			}
		}
	case MethodRegisterInstitution:
		var p RegisterInstitutionParams
		require.NoError(g.t, json.Unmarshal(req.Params, &p))
		result, err = g.receipt(g.ledger.RegisterInstitution(ctx, ledger.Authority{PrivateKey: p.Admin.PrivateKey}, ledger.Institution{
			Name: p.Name, TaxID: p.TaxID, Responsible: p.Responsible, Address: p.Address,
		}))
	case MethodVerifyInstitution:
		var p VerifyInstitutionParams
		require.NoError(g.t, json.Unmarshal(req.Params, &p))
		result, err = g.receipt(g.ledger.VerifyInstitution(ctx, ledger.Authority{PrivateKey: p.Admin.PrivateKey}, p.Address))
	case MethodTransferAdmin:
		var p TransferAdminParams
		require.NoError(g.t, json.Unmarshal(req.Params, &p))
		result, err = g.receipt(g.ledger.TransferAdmin(ctx, ledger.Authority{PrivateKey: p.Admin.PrivateKey}, p.NewAdminAddress))
	case MethodHealth:
		result = true
	default:
		g.write(w, Response{JSONRPC: "2.0", ID: req.ID, Error: &RPCError{Code: -32601, Message: "method not found"}})
		return
	}

	if err != nil {
		g.write(w, Response{JSONRPC: "2.0", ID: req.ID, Error: &RPCError{Code: -32000, Message: ledger.ReasonOf(err)}})
		return
	}
	raw, merr := json.Marshal(result)
	require.NoError(g.t, merr)
	g.write(w, Response{JSONRPC: "2.0", ID: req.ID, Result: raw})
}

func (g *gateway) receipt(r ledger.Receipt, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return ReceiptResult{TransactionHash: r.TxHash, AuthorityAddress: r.AuthorityAddress}, nil
}

func (g *gateway) write(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	require.NoError(g.t, json.NewEncoder(w).Encode(resp))
}

func newGateway(t *testing.T) (*Client, string, string) {
	t.Helper()
	adminKey, err := ethkey.GenerateKey()
	require.NoError(t, err)
	admin, err := ethkey.AddressFromPrivateKey(adminKey)
	require.NoError(t, err)

	srv := httptest.NewServer(&gateway{t: t, ledger: simulated.New(admin)})
	t.Cleanup(srv.Close)
	return New(srv.URL, WithHTTPClient(srv.Client())), adminKey, admin
}

func TestClient_RegisterAndGet(t *testing.T) {
	client, adminKey, admin := newGateway(t)
	ctx := context.Background()

	receipt, err := client.RegisterCertificate(ctx, ledger.CertificateSubmission{
		Key:         certHash,
		StudentName: "Maria Silva",
		IssueDate:   1700000000,
		Authority:   ledger.Authority{PrivateKey: adminKey},
	})
	require.NoError(t, err)
	assert.True(t, ethkey.IsHash(receipt.TxHash))
	assert.Equal(t, admin, receipt.AuthorityAddress)

	lookup, err := client.GetCertificate(ctx, certHash)
	require.NoError(t, err)
	require.True(t, lookup.Found)
	assert.Equal(t, "Maria Silva", lookup.View.StudentName)
	assert.Equal(t, int64(1700000000), lookup.View.IssueDate)
	assert.Equal(t, admin, lookup.View.AuthorityAddress)
}

func TestClient_GetMissingIsNotAnError(t *testing.T) {
	client, _, _ := newGateway(t)
	lookup, err := client.GetCertificate(context.Background(), "0x"+strings.Repeat("1", 64))
	require.NoError(t, err)
	assert.False(t, lookup.Found)
}

func TestClient_RejectionCarriesReason(t *testing.T) {
	client, adminKey, _ := newGateway(t)
	ctx := context.Background()

	_, err := client.TransferAdmin(ctx, ledger.Authority{PrivateKey: adminKey}, "0x"+strings.Repeat("0", 40))
	require.Error(t, err)
	le, ok := ledger.AsError(err)
	require.True(t, ok)
	assert.Equal(t, ledger.CategoryRejected, le.Category)
	assert.Equal(t, simulated.ReasonInvalidNewAdmin, le.Reason)
	assert.Equal(t, ledger.OpTransferAdmin, le.Op)
}

func TestClient_InstitutionFlow(t *testing.T) {
	client, adminKey, _ := newGateway(t)
	ctx := context.Background()
	admin := ledger.Authority{PrivateKey: adminKey}

	receipt, err := client.RegisterInstitution(ctx, admin, ledger.Institution{
		Name: "Instituição XYZ", TaxID: "12.345.678/0001-90", Responsible: "Prof. João",
	})
	require.NoError(t, err)
	require.True(t, ethkey.IsAddress(receipt.AuthorityAddress))

	_, err = client.VerifyInstitution(ctx, admin, receipt.AuthorityAddress)
	require.NoError(t, err)
}

func TestClient_Health(t *testing.T) {
	client, _, _ := newGateway(t)
	require.NoError(t, client.Health(context.Background()))
}

func TestClient_TransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).GetCertificate(context.Background(), certHash)
	require.Error(t, err)
	assert.Equal(t, ledger.CategoryUnavailable, ledger.CategoryOf(err))
}

func TestClient_BadStatusIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	err := New(srv.URL).Health(context.Background())
	require.Error(t, err)
	assert.Equal(t, ledger.CategoryUnavailable, ledger.CategoryOf(err))
}

func TestClient_DeadlineIsTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(srv.URL).RegisterCertificate(ctx, ledger.CertificateSubmission{Key: certHash})
	require.Error(t, err)
	assert.Equal(t, ledger.CategoryTimeout, ledger.CategoryOf(err))
}

func TestClient_EmptyReceiptIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(Response{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`{}`)})
	}))
	t.Cleanup(srv.Close)

	_, err := New(srv.URL).TransferAdmin(context.Background(), ledger.Authority{}, "0x")
	require.Error(t, err)
	assert.Equal(t, ledger.CategoryUnavailable, ledger.CategoryOf(err))
}
