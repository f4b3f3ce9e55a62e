package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tgdrive/clouddrive/internal/duration"
)

const (
	envPrefix = "CLOUDDRIVE_"
	appDir    = ".clouddrive"
)

var durationType = reflect.TypeOf(time.Duration(0))

// ConfigLoader layers struct defaults, a config file, CLOUDDRIVE_* environment
// variables and explicitly set flags, in that order of precedence.
type ConfigLoader struct {
	flagKeys map[string]string
	envKeys  map[string]string
	defaults map[string]any
	cfg      any
}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{
		flagKeys: make(map[string]string),
		envKeys:  make(map[string]string),
		defaults: make(map[string]any),
	}
}

func StringToDurationHook() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != durationType {
			return data, nil
		}
		str, ok := data.(string)
		if !ok {
			return data, nil
		}
		return duration.ParseDuration(str)
	}
}

// RegisterFlags adds one flag per leaf field of cfg, named after its config
// path (server.port becomes --server-port).
func (cl *ConfigLoader) RegisterFlags(flags *pflag.FlagSet, prefix string, cfg any, skipConfigFlag bool) error {
	if !skipConfigFlag && flags.Lookup("config") == nil {
		flags.StringP("config", "c", "", "Config file path (default $HOME/.clouddrive/config.toml)")
	}
	t := reflect.TypeOf(cfg)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return errors.Errorf("config must be a struct, got %s", t.Kind())
	}
	return cl.registerStruct(flags, t, prefix)
}

func (cl *ConfigLoader) registerStruct(flags *pflag.FlagSet, t reflect.Type, prefix string) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get("config")
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if field.Type.Kind() == reflect.Struct {
			if err := cl.registerStruct(flags, field.Type, key); err != nil {
				return err
			}
			continue
		}
		flagName := strings.ReplaceAll(key, ".", "-")
		if flags.Lookup(flagName) != nil {
			continue
		}
		if err := cl.addFlag(flags, field, flagName, key); err != nil {
			return errors.Wrapf(err, "register flag %s", flagName)
		}
		cl.flagKeys[flagName] = key
		cl.envKeys[envName(key)] = key
	}
	return nil
}

func (cl *ConfigLoader) addFlag(flags *pflag.FlagSet, field reflect.StructField, name, key string) error {
	def := field.Tag.Get("default")
	desc := field.Tag.Get("description")

	if field.Type == durationType {
		var d time.Duration
		if def != "" {
			v, err := duration.ParseDuration(def)
			if err != nil {
				return err
			}
			d = v
		}
		duration.DurationVar(flags, new(time.Duration), name, d, desc)
		cl.defaults[key] = d
		return nil
	}

	switch field.Type.Kind() {
	case reflect.String:
		flags.String(name, def, desc)
		cl.defaults[key] = def
	case reflect.Bool:
		v := false
		if def != "" {
			b, err := strconv.ParseBool(def)
			if err != nil {
				return err
			}
			v = b
		}
		flags.Bool(name, v, desc)
		cl.defaults[key] = v
	case reflect.Int:
		v := 0
		if def != "" {
			n, err := strconv.Atoi(def)
			if err != nil {
				return err
			}
			v = n
		}
		flags.Int(name, v, desc)
		cl.defaults[key] = v
	case reflect.Int64:
		var v int64
		if def != "" {
			n, err := strconv.ParseInt(def, 10, 64)
			if err != nil {
				return err
			}
			v = n
		}
		flags.Int64(name, v, desc)
		cl.defaults[key] = v
	case reflect.Float64:
		var v float64
		if def != "" {
			n, err := strconv.ParseFloat(def, 64)
			if err != nil {
				return err
			}
			v = n
		}
		flags.Float64(name, v, desc)
		cl.defaults[key] = v
	case reflect.Slice:
		if field.Type.Elem().Kind() != reflect.String {
			return errors.Errorf("unsupported slice type %s", field.Type)
		}
		var v []string
		if def != "" {
			v = strings.Split(def, ",")
		}
		flags.StringSlice(name, v, desc)
		cl.defaults[key] = v
	default:
		return errors.Errorf("unsupported field type %s", field.Type)
	}
	return nil
}

func (cl *ConfigLoader) Load(cmd *cobra.Command, cfg any) error {
	cl.cfg = cfg
	flags := cmd.Flags()
	k := koanf.New(".")

	for key, v := range cl.defaults {
		if err := k.Set(key, v); err != nil {
			return errors.Wrapf(err, "set default %s", key)
		}
	}

	if err := cl.loadFile(k, flags); err != nil {
		return err
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return cl.envKeys[s]
	}), nil); err != nil {
		return errors.Wrap(err, "load environment")
	}

	var setErr error
	flags.Visit(func(f *pflag.Flag) {
		key, ok := cl.flagKeys[f.Name]
		if !ok || setErr != nil {
			return
		}
		var v any = f.Value.String()
		if f.Value.Type() == "stringSlice" {
			v, _ = flags.GetStringSlice(f.Name)
		}
		setErr = k.Set(key, v)
	})
	if setErr != nil {
		return errors.Wrap(setErr, "apply flags")
	}

	dc := &mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			StringToDurationHook(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           cfg,
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "config", DecoderConfig: dc}); err != nil {
		return errors.Wrap(err, "decode config")
	}
	return nil
}

func (cl *ConfigLoader) loadFile(k *koanf.Koanf, flags *pflag.FlagSet) error {
	path := ""
	if f := flags.Lookup("config"); f != nil {
		path = f.Value.String()
	}
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}
	var parser koanf.Parser = toml.Parser()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return errors.Wrapf(err, "read config file %s", path)
	}
	return nil
}

func findConfigFile() string {
	var dirs []string
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, appDir))
	}
	dirs = append(dirs, ".")
	for _, dir := range dirs {
		for _, name := range []string{"config.toml", "config.yaml", "config.yml"} {
			p := filepath.Join(dir, name)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}

// Validate checks the loaded config against its validate tags.
func (cl *ConfigLoader) Validate() error {
	if cl.cfg == nil {
		return errors.New("config not loaded")
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("config")
	})
	err := v.Struct(cl.cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var missing, invalid []string
	for _, fe := range verrs {
		key := fe.Namespace()
		if i := strings.Index(key, "."); i >= 0 {
			key = key[i+1:]
		}
		if fe.Tag() == "required" {
			missing = append(missing, key)
			continue
		}
		invalid = append(invalid, fmt.Sprintf("%s (%s %s)", key, fe.Tag(), fe.Param()))
	}
	if len(missing) > 0 {
		return errors.Errorf("required configuration values not set: %s", strings.Join(missing, ", "))
	}
	return errors.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
}

func envName(key string) string {
	return envPrefix + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}
