package awssm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/shimarch/smrkit/secret"
)

type fakeAPI struct {
	mu      sync.Mutex
	values  map[string]string
	err     error
	created []string
}

func (f *fakeAPI) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.values[aws.ToString(in.SecretId)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func (f *fakeAPI) PutSecretValue(_ context.Context, in *secretsmanager.PutSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	id := aws.ToString(in.SecretId)
	if _, ok := f.values[id]; !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	f.values[id] = aws.ToString(in.SecretString)
	return &secretsmanager.PutSecretValueOutput{}, nil
}

func (f *fakeAPI) CreateSecret(_ context.Context, in *secretsmanager.CreateSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := aws.ToString(in.Name)
	f.values[id] = aws.ToString(in.SecretString)
	f.created = append(f.created, id)
	return &secretsmanager.CreateSecretOutput{Name: in.Name}, nil
}

func (f *fakeAPI) DescribeSecret(_ context.Context, _ *secretsmanager.DescribeSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
}

func TestBackend_Get(t *testing.T) {
	ctx := context.Background()
	b := NewWithClient(&fakeAPI{values: map[string]string{"prod/A": "secret1"}}, "prod/")

	if v, err := b.Get(ctx, "A"); err != nil || v != "secret1" {
		t.Fatalf("Get(A) = %q, %v", v, err)
	}
	_, err := b.Get(ctx, "B")
	if !secret.IsNotFound(err) || secret.IsUnavailable(err) {
		t.Fatalf("Get(B) error = %v, want only ErrNotFound", err)
	}
}

func TestBackend_ServiceErrorIsUnavailable(t *testing.T) {
	denied := errors.New("AccessDeniedException: not authorized")
	b := NewWithClient(&fakeAPI{err: denied}, "")

	_, err := b.Get(context.Background(), "A")
	if !secret.IsUnavailable(err) || secret.IsNotFound(err) || !errors.Is(err, denied) {
		t.Fatalf("Get() error = %v, want only ErrUnavailable wrapping cause", err)
	}
	if err := b.Ping(context.Background()); !secret.IsUnavailable(err) {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestBackend_SetCreatesThenPuts(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{values: map[string]string{}}
	b := NewWithClient(api, "")

	if err := b.Set(ctx, "TOKEN", "v1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := b.Set(ctx, "TOKEN", "v2"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if len(api.created) != 1 {
		t.Fatalf("created = %v, want one CreateSecret", api.created)
	}
	if v, _ := b.Get(ctx, "TOKEN"); v != "v2" {
		t.Fatalf("Get() = %q, want v2", v)
	}
}

func TestBackend_PingAndClose(t *testing.T) {
	ctx := context.Background()
	b := NewWithClient(&fakeAPI{values: map[string]string{"A": "1"}}, "")
	if err := b.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	_ = b.Close()
	if _, err := b.Get(ctx, "A"); !secret.IsUnavailable(err) || !errors.Is(err, secret.ErrClosed) {
		t.Fatalf("Get after Close error = %v", err)
	}
}

func TestBackend_WithManager(t *testing.T) {
	m, err := secret.NewManager(NewWithClient(&fakeAPI{values: map[string]string{"A": "secret1"}}, ""))
	if err != nil {
		t.Fatal(err)
	}
	ok, err := m.Has(context.Background(), "A")
	if err != nil || !ok {
		t.Fatalf("Has(A) = %v, %v", ok, err)
	}
	if _, err := m.All(context.Background()); !errors.Is(err, secret.ErrNotListable) {
		t.Fatalf("All() error = %v, want ErrNotListable", err)
	}
}

func TestRegister(t *testing.T) {
	reg := secret.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := Register(reg); err == nil {
		t.Fatal("second Register() should fail")
	}
	if _, err := reg.Create(Kind, map[string]any{"region": 12}); !errors.Is(err, secret.ErrInvalidConfig) {
		t.Fatalf("Create() error = %v, want ErrInvalidConfig", err)
	}
}
