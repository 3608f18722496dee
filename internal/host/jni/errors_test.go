package jni

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mabhi256/jinterop/internal/host"
)

func TestJNIError(t *testing.T) {
	assert.NoError(t, jniError("GetEnv", jniOK))
	assert.ErrorIs(t, jniError("GetEnv", jniDetached), host.ErrDetached)
	assert.ErrorIs(t, jniError("GetEnv", jniVersion), host.ErrVersion)
	assert.EqualError(t, jniError("JNI_CreateJavaVM", jniExists), "JNI_CreateJavaVM: a VM already exists in this process")
	assert.EqualError(t, jniError("AttachCurrentThread", jniErr), "AttachCurrentThread: JNI error -1")
}

func TestToolingError(t *testing.T) {
	assert.NoError(t, toolingError("GetPhase", 0))

	err := toolingError("GetLoadedClasses", 112)
	assert.EqualError(t, err, "GetLoadedClasses: JVMTI_ERROR_WRONG_PHASE (112)")
	assert.False(t, errors.Is(err, host.ErrDetached))

	err = toolingError("GetAllThreads", 115)
	assert.ErrorIs(t, err, host.ErrDetached)

	var te *ToolingError
	assert.ErrorAs(t, toolingError("GetClassFields", 777), &te)
	assert.Equal(t, "GetClassFields: JVMTI_ERROR_UNKNOWN (777)", te.Error())
}
