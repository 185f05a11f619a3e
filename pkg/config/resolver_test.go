package config

import (
	"os"
	"reflect"
	"testing"
)

func TestConfigResolver(t *testing.T) {
	t.Run("precedence order", func(t *testing.T) {
		os.Setenv("VOTEPERFX_TEST_KEY", "env_value")
		os.Setenv("VOTEPERFX_ENV_ONLY", "env_value")
		defer func() {
			os.Unsetenv("VOTEPERFX_TEST_KEY")
			os.Unsetenv("VOTEPERFX_ENV_ONLY")
		}()

		flagSource := NewFlagSource()
		flagSource.Set("VOTEPERFX_TEST_KEY", "flag_value")
		resolver := NewConfigResolver(flagSource, &EnvSource{})

		if value := resolver.ResolveString("VOTEPERFX_TEST_KEY", "default"); value != "flag_value" {
			t.Errorf("expected 'flag_value', got '%s'", value)
		}
		if value := resolver.ResolveString("VOTEPERFX_ENV_ONLY", "default"); value != "env_value" {
			t.Errorf("expected 'env_value', got '%s'", value)
		}
		if value := resolver.ResolveString("VOTEPERFX_MISSING", "default"); value != "default" {
			t.Errorf("expected 'default', got '%s'", value)
		}
	})

	t.Run("typed resolution", func(t *testing.T) {
		flagSource := NewFlagSource()
		flagSource.Set("VOTEPERFX_TEST_INT", 100)
		flagSource.Set("VOTEPERFX_TEST_FLOAT", 0.75)
		flagSource.Set("VOTEPERFX_TEST_BOOL", false)

		os.Setenv("VOTEPERFX_TEST_INT", "50")
		os.Setenv("VOTEPERFX_TEST_BOOL", "true")
		defer func() {
			os.Unsetenv("VOTEPERFX_TEST_INT")
			os.Unsetenv("VOTEPERFX_TEST_BOOL")
		}()

		resolver := NewConfigResolver(flagSource, &EnvSource{})
		if value := resolver.ResolveInt("VOTEPERFX_TEST_INT", 1); value != 100 {
			t.Errorf("expected 100, got %d", value)
		}
		if value := resolver.ResolveFloat("VOTEPERFX_TEST_FLOAT", 0.9); value != 0.75 {
			t.Errorf("expected 0.75, got %f", value)
		}
		// an explicit false flag beats a true env value
		if value := resolver.ResolveBool("VOTEPERFX_TEST_BOOL", true); value {
			t.Error("expected false from flag")
		}
		if value := resolver.ResolveInt("VOTEPERFX_MISSING_INT", 42); value != 42 {
			t.Errorf("expected 42, got %d", value)
		}
	})
}

func TestConfigResolver_StringSlice(t *testing.T) {
	testCases := []struct {
		name     string
		set      string
		def      string
		expected []string
	}{
		{"default used", "", "poor,critical", []string{"poor", "critical"}},
		{"blank items dropped", " a, ,b ,", "", []string{"a", "b"}},
		{"empty default", "", "", nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			flagSource := NewFlagSource()
			if tc.set != "" {
				flagSource.Set("VOTEPERFX_LIST", tc.set)
			}
			got := NewConfigResolver(flagSource).ResolveStringSlice("VOTEPERFX_LIST", tc.def)
			if !reflect.DeepEqual(got, tc.expected) {
				t.Errorf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestConfigResolverEmptySources(t *testing.T) {
	resolver := NewConfigResolver()

	if value := resolver.ResolveString("ANY_KEY", "default"); value != "default" {
		t.Errorf("expected 'default', got '%s'", value)
	}
	if value := resolver.ResolveInt("ANY_KEY", 42); value != 42 {
		t.Errorf("expected 42, got %d", value)
	}
	if value := resolver.ResolveBool("ANY_KEY", true); !value {
		t.Error("expected default true")
	}
}

func BenchmarkConfigResolverResolveString(b *testing.B) {
	flagSource := NewFlagSource()
	flagSource.Set("BENCH_STRING", "flag_value")

	os.Setenv("BENCH_STRING", "env_value")
	defer os.Unsetenv("BENCH_STRING")

	resolver := NewConfigResolver(flagSource, &EnvSource{})
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		resolver.ResolveString("BENCH_STRING", "default")
	}
}
