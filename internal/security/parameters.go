package security

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"sheetpipe/internal/failure"
)

type ParameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// GetSecureParameter reads a SecureString parameter, decrypted.
func GetSecureParameter(ctx context.Context, api ParameterAPI, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", failure.Newf(failure.KindConfig, "ssm getparameter", "missing parameter name")
	}

	out, err := api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", failure.New(failure.KindConfig, "ssm getparameter "+name, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", failure.Newf(failure.KindConfig, "ssm getparameter "+name, "parameter has no value")
	}
	return aws.ToString(out.Parameter.Value), nil
}

// ResolvePassword returns the inline password, or the decrypted parameter when
// the password is held in SSM.
func ResolvePassword(ctx context.Context, api ParameterAPI, inline, param string) (string, error) {
	if inline != "" {
		return inline, nil
	}
	return GetSecureParameter(ctx, api, param)
}
