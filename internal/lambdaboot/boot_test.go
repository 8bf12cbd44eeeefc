package lambdaboot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type fakeSSM struct {
	value string
	err   error
	in    *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(f.value)}}, nil
}

func TestLoadAccessToken(t *testing.T) {
	f := &fakeSSM{value: "secret-token"}
	tok, err := LoadAccessToken(context.Background(), f, "/meta/prod/token")
	if err != nil {
		t.Fatalf("LoadAccessToken: %v", err)
	}
	if tok != "secret-token" {
		t.Errorf("token = %q", tok)
	}
	if aws.ToString(f.in.Name) != "/meta/prod/token" || !aws.ToBool(f.in.WithDecryption) {
		t.Errorf("input = %+v", f.in)
	}
}

func TestLoadAccessToken_Errors(t *testing.T) {
	_, err := LoadAccessToken(context.Background(), &fakeSSM{err: errors.New("ParameterNotFound")}, "/missing")
	if err == nil || !strings.Contains(err.Error(), "/missing") {
		t.Errorf("err = %v", err)
	}
	_, err = LoadAccessToken(context.Background(), &fakeSSM{}, "/empty")
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Errorf("err = %v", err)
	}
}

func TestInitOptional_Unset(t *testing.T) {
	if s := InitStoreOptional(aws.Config{}, ""); s != nil {
		t.Errorf("store = %v, want nil", s)
	}
	if e := InitEventsOptional(aws.Config{}, ""); e != nil {
		t.Errorf("emitter = %v, want nil", e)
	}
}
