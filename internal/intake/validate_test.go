package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"acme.com", "https://acme.com"},
		{"acme.com/", "https://acme.com"},
		{"http://acme.com/", "http://acme.com"},
		{"https://www.acme.com", "https://www.acme.com"},
		{"  acme.com  ", "https://acme.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeURL(tt.in), "input %q", tt.in)
	}
}

func TestExtractDomain(t *testing.T) {
	d, err := ExtractDomain("https://www.Acme.com/pricing")
	require.NoError(t, err)
	assert.Equal(t, "acme.com", d)

	d, err = ExtractDomain("sub.acme.co.uk")
	require.NoError(t, err)
	assert.Equal(t, "sub.acme.co.uk", d)

	_, err = ExtractDomain("https://")
	assert.Error(t, err)
}

func TestValidateDomain_ExactAndSubdomain(t *testing.T) {
	valid, review, err := ValidateDomain("ops@acme.com", "https://acme.com")
	require.NoError(t, err)
	assert.True(t, valid)
	assert.False(t, review)

	// Email on a subdomain of the site.
	valid, review, err = ValidateDomain("ops@sub.acme.com", "acme.com")
	require.NoError(t, err)
	assert.True(t, valid)
	assert.False(t, review)

	// Site on a subdomain of the email domain.
	valid, review, err = ValidateDomain("ops@acme.com", "https://shop.acme.com")
	require.NoError(t, err)
	assert.True(t, valid)
	assert.False(t, review)

	// www. prefix is not a real subdomain.
	valid, review, err = ValidateDomain("ops@acme.com", "https://www.acme.com")
	require.NoError(t, err)
	assert.True(t, valid)
	assert.False(t, review)
}

func TestValidateDomain_GenericProvider(t *testing.T) {
	valid, review, err := ValidateDomain("jane@gmail.com", "https://whatever.example")
	require.NoError(t, err)
	assert.True(t, valid)
	assert.True(t, review)
}

func TestValidateDomain_Mismatch(t *testing.T) {
	valid, review, err := ValidateDomain("ops@other.com", "https://acme.com")
	require.NoError(t, err)
	assert.False(t, valid)
	assert.False(t, review)

	// Suffix overlap without a dot boundary is not a match.
	valid, _, err = ValidateDomain("ops@notacme.com", "https://acme.com")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestValidateDomain_MalformedEmail(t *testing.T) {
	_, _, err := ValidateDomain("not-an-email", "https://acme.com")
	assert.Error(t, err)

	_, _, err = ValidateDomain("trailing@", "https://acme.com")
	assert.Error(t, err)
}
