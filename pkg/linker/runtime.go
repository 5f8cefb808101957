package linker

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/coldog/extbld/pkg/config"
	"github.com/coldog/extbld/pkg/entry"
)

// Transport is the primitive the runtime uses to fetch and execute a chunk
// file. It is a JS function (url, done) that calls done() once the script ran
// or done(error) when it failed.
type Transport struct {
	Name   string
	Source string
}

var (
	// ScriptTag appends a <script> element to the document and waits for its
	// load or error event.
	ScriptTag = Transport{Name: "script", Source: `function (url, done) {
  var script = document.createElement("script");
  script.src = url;
  script.async = true;
  script.onload = function () { done(); };
  script.onerror = function () { done(new Error("script error")); };
  (document.head || document.documentElement).appendChild(script);
}`}

	// Headless loads chunks with importScripts and works without a
	// document, e.g. in a background service worker.
	Headless = Transport{Name: "importScripts", Source: `function (url, done) {
  try {
    importScripts(url);
  } catch (e) {
    done(e);
    return;
  }
  done();
}`}
)

// TransportFor selects the chunk transport for an entry bundle. Only the
// modern variant runs its background entry as a service worker.
func TransportFor(kind entry.Kind, variant config.Variant) Transport {
	if kind == entry.Background && variant == config.Modern {
		return Headless
	}
	return ScriptTag
}

// runtime is shared by every entry bundle of a page or worker; the first one
// to run installs it on the global object.
//
// Chunk states: absent (unrequested), "requested", "executed", "failed". A
// chunk id is handed to the transport at most once. Failures are kept; the
// runtime never retries on its own.
const runtime = `function __extbld_install__(global, transport) {
  if (global.__extbld__) {
    return global.__extbld__;
  }

  var modules = {};
  var cache = {};
  var registered = {};
  var states = {};
  var config = { publicPath: "/", timeout: 5000, urls: {}, lazy: {} };
  var hasOwn = Object.prototype.hasOwnProperty;

  function register(chunk) {
    var factories = chunk[1];
    for (var name in factories) {
      if (hasOwn.call(factories, name) && !hasOwn.call(modules, name)) {
        modules[name] = factories[name];
      }
    }
    registered[chunk[0]] = true;
  }

  function require(name) {
    if (hasOwn.call(cache, name)) {
      return cache[name].exports;
    }
    if (!hasOwn.call(modules, name)) {
      throw new Error("extbld: module " + name + " is not registered");
    }
    var module = { id: name, exports: {} };
    cache[name] = module;
    modules[name].call(module.exports, module, module.exports, require, importModule);
    return module.exports;
  }

  function chunkLoadError(id, url, type, cause) {
    var msg = "Loading chunk " + id + " failed (" + type + ": " + url + ")";
    if (cause && cause.message) {
      msg += ": " + cause.message;
    }
    var err = new Error(msg);
    err.name = "ChunkLoadError";
    err.type = type;
    err.chunk = id;
    err.url = url;
    err.cause = cause;
    return err;
  }

  function load(id) {
    var state = states[id];
    if (state) {
      return state.promise;
    }
    if (registered[id]) {
      state = states[id] = { status: "executed", promise: Promise.resolve() };
      return state.promise;
    }

    var url = hasOwn.call(config.urls, id) ? config.urls[id] : null;
    state = states[id] = { status: "requested" };
    state.promise = new Promise(function (resolve, reject) {
      var settled = false;
      var timer = null;

      function done(cause, timedOut) {
        if (settled) {
          return;
        }
        settled = true;
        if (timer !== null) {
          clearTimeout(timer);
        }
        var err = null;
        if (timedOut) {
          err = chunkLoadError(id, url, "timeout");
        } else if (cause) {
          err = chunkLoadError(id, url, "error", cause);
        } else if (!registered[id]) {
          err = chunkLoadError(id, url, "missing");
        }
        if (err) {
          state.status = "failed";
          state.error = err;
          reject(err);
        } else {
          state.status = "executed";
          resolve();
        }
      }

      if (url === null) {
        done(new Error("unknown chunk"));
        return;
      }
      timer = setTimeout(function () { done(null, true); }, config.timeout);
      try {
        transport(url, function (err) { done(err, false); });
      } catch (e) {
        done(e, false);
      }
    });
    return state.promise;
  }

  function loadAll(ids) {
    return ids.reduce(function (p, id) {
      return p.then(function () { return load(id); });
    }, Promise.resolve());
  }

  function importModule(name) {
    var ids = hasOwn.call(config.lazy, name) ? config.lazy[name] : [];
    return loadAll(ids).then(function () { return require(name); });
  }

  // start runs main once every shared chunk has registered. Shared chunks
  // are loaded one after another. When the transport completes
  // synchronously (importScripts) the entry runs in the same turn.
  function start(shared, main) {
    var i = 0;
    for (; i < shared.length; i++) {
      load(shared[i]);
      if (states[shared[i]].status !== "executed") {
        break;
      }
    }
    if (i === shared.length) {
      try {
        return Promise.resolve(require(main));
      } catch (e) {
        return Promise.reject(e);
      }
    }
    return loadAll(shared.slice(i)).then(function () { return require(main); });
  }

  function configure(opts) {
    if (opts.publicPath) {
      config.publicPath = opts.publicPath;
    }
    if (opts.timeout) {
      config.timeout = opts.timeout;
    }
    var key;
    for (key in opts.urls || {}) {
      config.urls[key] = opts.urls[key];
    }
    for (key in opts.lazy || {}) {
      config.lazy[key] = opts.lazy[key];
    }
  }

  function state(id) {
    if (states[id]) {
      return states[id].status;
    }
    return registered[id] ? "executed" : "unrequested";
  }

  function report(err) {
    setTimeout(function () { throw err; }, 0);
  }

  var queue = global.__extbld_chunks__ = global.__extbld_chunks__ || [];
  for (var q = 0; q < queue.length; q++) {
    register(queue[q]);
  }
  var push = queue.push;
  queue.push = function (chunk) {
    register(chunk);
    return push.call(queue, chunk);
  };

  global.__extbld__ = {
    require: require,
    load: load,
    start: start,
    configure: configure,
    importModule: importModule,
    state: state,
    report: report
  };
  return global.__extbld__;
}`

// runtimeOptions is passed to configure() by each entry bundle.
type runtimeOptions struct {
	PublicPath string              `json:"publicPath"`
	Timeout    int64               `json:"timeout"`
	URLs       map[string]string   `json:"urls"`
	Lazy       map[string][]string `json:"lazy"`
}

// newRuntimeOptions rounds timeout up to whole milliseconds, since the runtime
// treats a zero timeout as unset.
func newRuntimeOptions(publicPath string, timeout time.Duration) runtimeOptions {
	ms := timeout.Milliseconds()
	if timeout%time.Millisecond != 0 {
		ms++
	}
	return runtimeOptions{
		PublicPath: publicPath,
		Timeout:    ms,
		URLs:       map[string]string{},
		Lazy:       map[string][]string{},
	}
}

// Bootstrap renders the code that installs the runtime with the given
// transport and configures it.
func Bootstrap(t Transport, opts runtimeOptions) (string, error) {
	data, err := json.Marshal(opts)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(runtime)
	b.WriteString("\nvar __extbld__ = __extbld_install__(self, ")
	b.WriteString(t.Source)
	b.WriteString(");\n__extbld__.configure(")
	b.Write(data)
	b.WriteString(");\n")
	return b.String(), nil
}
