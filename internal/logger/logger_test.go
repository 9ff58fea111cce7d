package logger

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, parseLevel("debug"))
	assert.Equal(t, logrus.WarnLevel, parseLevel("warn"))
	assert.Equal(t, logrus.ErrorLevel, parseLevel("error"))
	assert.Equal(t, logrus.InfoLevel, parseLevel(""))
	assert.Equal(t, logrus.InfoLevel, parseLevel("verbose"))
}

func TestNewUsesJSONOutsideLocal(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	l := New()
	_, ok := l.Logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)

	t.Setenv("ENVIRONMENT", "local")
	l = New()
	_, ok = l.Logger.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)
}

func TestFieldHelpers(t *testing.T) {
	l := Discard().WithComponent("splitter")
	assert.Equal(t, "splitter", l.Data["component"])

	e := l.WithRun("abc")
	assert.Equal(t, "abc", e.Data["run_id"])
	assert.Equal(t, "splitter", e.Data["component"])

	e = l.WithError(errors.New("boom"))
	assert.Equal(t, "boom", e.Data["error"])

	assert.Same(t, l.Entry, l.WithError(nil))
}
