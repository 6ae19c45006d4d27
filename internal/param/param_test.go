package param

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	params map[string]types.Parameter
	pages  [][]types.Parameter
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	p, ok := f.params[aws.ToString(in.Name)]
	if !ok {
		return nil, errors.New("ParameterNotFound")
	}
	return &ssm.GetParameterOutput{Parameter: &p}, nil
}

func (f *fakeSSM) GetParametersByPath(_ context.Context, in *ssm.GetParametersByPathInput, _ ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error) {
	if len(f.pages) == 0 {
		return &ssm.GetParametersByPathOutput{}, nil
	}
	idx := 0
	if in.NextToken != nil {
		idx = len(aws.ToString(in.NextToken))
	}
	out := &ssm.GetParametersByPathOutput{Parameters: f.pages[idx]}
	if idx+1 < len(f.pages) {
		out.NextToken = aws.String(string(make([]byte, idx+1)))
	}
	return out, nil
}

func param(name, value string, typ types.ParameterType) types.Parameter {
	return types.Parameter{Name: aws.String(name), Value: aws.String(value), Type: typ}
}

func TestParameterStoreFetch(t *testing.T) {
	f := &ParameterStoreFetcher{client: &fakeSSM{params: map[string]types.Parameter{
		"/studio/key": param("/studio/key", "s3cret", types.ParameterTypeSecureString),
	}}}

	v, err := f.Fetch(context.Background(), "/studio/key")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)

	_, err = f.Fetch(context.Background(), "/missing")
	assert.Error(t, err)
}

func TestParameterStoreFetchAllPages(t *testing.T) {
	f := &ParameterStoreFetcher{client: &fakeSSM{pages: [][]types.Parameter{
		{param("/p/1", "a kitten", types.ParameterTypeString)},
		{param("/p/2", "16:9|a cat", types.ParameterTypeString), param("/p/3", "a lion", types.ParameterTypeString)},
	}}}

	v, err := f.FetchAll(context.Background(), "/p")
	require.NoError(t, err)
	assert.Equal(t, []string{"a kitten", "16:9|a cat", "a lion"}, v)
}

func TestParameterStoreFetchAllStringList(t *testing.T) {
	f := &ParameterStoreFetcher{client: &fakeSSM{params: map[string]types.Parameter{
		"/prompts": param("/prompts", "a,b,c", types.ParameterTypeStringList),
	}}}

	v, err := f.FetchAll(context.Background(), "/prompts")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, v)
}

func TestEnvFetcher(t *testing.T) {
	t.Setenv("STUDIO_TEST_KEY", "abc")
	t.Setenv("STUDIO_TEST_PROMPTS", "a kitten, sleeping\n\n  16:9|a cat  \n")

	v, err := EnvFetcher{}.Fetch(context.Background(), "STUDIO_TEST_KEY")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	_, err = EnvFetcher{}.Fetch(context.Background(), "STUDIO_TEST_UNSET")
	assert.Error(t, err)

	list, err := EnvFetcher{}.FetchAll(context.Background(), "STUDIO_TEST_PROMPTS")
	require.NoError(t, err)
	assert.Equal(t, []string{"a kitten, sleeping", "16:9|a cat"}, list)

	list, err = EnvFetcher{}.FetchAll(context.Background(), "STUDIO_TEST_UNSET")
	require.NoError(t, err)
	assert.Empty(t, list)
}
