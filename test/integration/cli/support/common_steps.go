package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/MeKo-Tech/boxaug/internal/imageio"
	"github.com/cucumber/godog"
)

// iRunCommand executes a command and stores the result.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)
	testCtx.LastCommand = command

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = testCtx.WorkingDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	testCtx.LastDuration = time.Since(start)
	testCtx.LastStdout = stdout.String()
	testCtx.LastOutput = stdout.String() + stderr.String()
	testCtx.LastError = err

	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	} else {
		testCtx.LastExitCode = 0
	}
	return nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies the output contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	expectedText = testCtx.substituteCommandVariables(expectedText)
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

// stdoutJSON decodes the command's stdout.
func (testCtx *TestContext) stdoutJSON() (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(testCtx.LastStdout)), &m); err != nil {
		return nil, fmt.Errorf("stdout is not a JSON object: %w\nstdout: %s", err, testCtx.LastStdout)
	}
	return m, nil
}

// theJSONShouldContain verifies the JSON output has a field.
func (testCtx *TestContext) theJSONShouldContain(field string) error {
	m, err := testCtx.stdoutJSON()
	if err != nil {
		return err
	}
	if _, ok := m[field]; !ok {
		return fmt.Errorf("JSON output has no field %q: %s", field, testCtx.LastStdout)
	}
	return nil
}

// theJSONStepsShouldBe verifies the recorded step names.
func (testCtx *TestContext) theJSONStepsShouldBe(want string) error {
	m, err := testCtx.stdoutJSON()
	if err != nil {
		return err
	}
	raw, _ := m["steps"].([]any)
	got := make([]string, len(raw))
	for i, s := range raw {
		got[i], _ = s.(string)
	}
	if strings.Join(got, ",") != want {
		return fmt.Errorf("steps are %v, want %s", got, want)
	}
	return nil
}

// theFileShouldExist verifies a file exists.
func (testCtx *TestContext) theFileShouldExist(name string) error {
	path := testCtx.Path(name)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file %s does not exist: %w", path, err)
	}
	return nil
}

// theFileShouldNotExist verifies a file is absent.
func (testCtx *TestContext) theFileShouldNotExist(name string) error {
	path := testCtx.Path(name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file %s exists but should not", path)
	}
	return nil
}

// theSidecarShouldHoldBoxes checks the number of boxes in an annotation file.
func (testCtx *TestContext) theSidecarShouldHoldBoxes(name string, n int) error {
	ann, err := imageio.LoadAnnotations(testCtx.Path(name))
	if err != nil {
		return err
	}
	if len(ann.Boxes) != n {
		return fmt.Errorf("%s holds %d boxes, want %d", name, len(ann.Boxes), n)
	}
	return nil
}

// theBoxShouldBe checks one box of an annotation file to 1e-6.
func (testCtx *TestContext) theBoxShouldBe(idx int, name string, x, y, w, h float64) error {
	ann, err := imageio.LoadAnnotations(testCtx.Path(name))
	if err != nil {
		return err
	}
	if idx >= len(ann.Boxes) {
		return fmt.Errorf("%s has no box %d", name, idx)
	}
	b := ann.Boxes[idx]
	for i, pair := range [][2]float64{{b.X, x}, {b.Y, y}, {b.W, w}, {b.H, h}} {
		if math.Abs(pair[0]-pair[1]) > 1e-6 {
			return fmt.Errorf("box %d of %s is %v, component %d want %g", idx, name, b.Slice(), i, pair[1])
		}
	}
	return nil
}

// theFilesShouldBeIdentical compares two files byte for byte.
func (testCtx *TestContext) theFilesShouldBeIdentical(a, b string) error {
	da, err := os.ReadFile(testCtx.Path(a))
	if err != nil {
		return err
	}
	db, err := os.ReadFile(testCtx.Path(b))
	if err != nil {
		return err
	}
	if !bytes.Equal(da, db) {
		return fmt.Errorf("%s and %s differ", a, b)
	}
	return nil
}

// RegisterCommonSteps registers command and file steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the JSON should contain "([^"]*)"$`, testCtx.theJSONShouldContain)
	sc.Step(`^the JSON steps should be "([^"]*)"$`, testCtx.theJSONStepsShouldBe)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^the sidecar "([^"]*)" should hold (\d+) boxes?$`, testCtx.theSidecarShouldHoldBoxes)
	sc.Step(`^box (\d+) of "([^"]*)" should be \[([-0-9.]+), ([-0-9.]+), ([-0-9.]+), ([-0-9.]+)\]$`, testCtx.theBoxShouldBe)
	sc.Step(`^the files "([^"]*)" and "([^"]*)" should be identical$`, testCtx.theFilesShouldBeIdentical)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, func(name, value string) error {
		testCtx.AddEnvVar(name, testCtx.substituteCommandVariables(value))
		return nil
	})
}
