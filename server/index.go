package server

import (
	"html/template"

	"github.com/rob102-staff/nav-app/config"
	"github.com/rob102-staff/nav-app/scene"
)

// pageData parameterizes the index page.
type pageData struct {
	Width       int
	Layers      []string
	Algorithms  []config.Algorithm
	DefaultAlgo string
	RobotColour string
}

func layerID(name string) string {
	return "layer-" + name
}

// parseIndex builds the main page: the stacked layer canvases, the svg robot overlay, the
// controls, and the bootstrap code that applies frames and sends page commands.
func parseIndex() (*template.Template, error) {
	return template.New("index.html").Funcs(
		template.FuncMap{
			"layerId": layerID,
		}).Parse(`<!DOCTYPE html>
<html>
	<head>
		<link rel="icon" href="data:,">
		<title>Nav App</title>
		<style>
			body { font-family: sans-serif; margin: 16px; }
			#scene { position: relative; width: {{ .Width }}px; height: {{ .Width }}px; border: 1px solid #ccc; }
			#scene canvas, #scene svg { position: absolute; top: 0; left: 0; }
			#controls { margin: 8px 0; display: flex; gap: 8px; align-items: center; }
			#connection { padding: 2px 8px; }
			#status-bar { font-family: monospace; margin-top: 8px; }
		</style>
	</head>
	<body>
		<div id="controls">
			<span id="` + scene.EleConnection + `">Wait</span>
			<span id="` + scene.EleMapName + `">No map loaded</span>
			<input id="map-file" type="file" accept=".map,.json">
			<select id="` + scene.EleAlgo + `">
			{{ range .Algorithms }}
				<option value="{{ .Key }}"{{ if eq .Key $.DefaultAlgo }} selected{{ end }}>{{ .Name }}</option>
			{{ end }}
			</select>
			<button id="plan">Plan</button>
			<button id="clear-goal">Clear Goal</button>
			<button id="toggle-field">Show Field</button>
			<label>Speed <input id="speed" type="range" min="0" max="100" value="0"></label>
			<span id="` + scene.ElePlayback + `"></span>
		</div>
		<div id="scene">
		{{ range .Layers }}
			<canvas id="{{ layerId . }}" width="{{ $.Width }}" height="{{ $.Width }}"></canvas>
		{{ end }}
			<svg id="robot-overlay" width="{{ .Width }}" height="{{ .Width }}">
				<circle id="` + scene.EleRobot + `" cx="0" cy="0" r="0" fill="{{ .RobotColour }}"></circle>
				<line id="` + scene.EleHeading + `" x1="0" y1="0" x2="0" y2="0" stroke="#ffffff" stroke-width="3"></line>
			</svg>
		</div>
		<div id="status-bar">
			<div id="` + scene.EleStatus + `"></div>
			<div id="` + scene.EleGoal + `" style="color: #ff0000"></div>
		</div>

		<!--Client bootstrap: the server pushes frames of paint ops and element updates over the websocket.-->
		<script>
			const width = {{ .Width }};
			const layers = {{ .Layers }};
			const contexts = {};
			for (const name of layers) {
				const ctx = document.getElementById("layer-" + name).getContext("2d");
				// Paint ops are Cartesian, y up.
				ctx.setTransform(1, 0, 0, -1, 0, width);
				contexts[name] = ctx;
			}

			function clearLayers() {
				for (const name of layers) {
					contexts[name].clearRect(0, 0, width, width);
				}
			}

			function applyPaint(op) {
				const ctx = contexts[op.layer];
				if (!ctx) {
					return;
				}
				const x = op.x || 0, y = op.y || 0, w = op.w || 0, h = op.h || 0;
				switch (op.kind) {
				case "fill":
					ctx.fillStyle = op.color;
					ctx.fillRect(x, y, w, h);
					break;
				case "clear":
					ctx.clearRect(x, y, w, h);
					break;
				case "reset":
					ctx.clearRect(0, 0, width, width);
					break;
				}
			}

			function applyUpdate(update) {
				const ele = document.getElementById(update.EleId);
				if (!ele) {
					return;
				}
				for (const op of update.Ops) {
					if (op.Key === "textContent") {
						ele.textContent = op.Value;
					} else if (op.Key === "value") {
						ele.value = op.Value;
					} else {
						ele.setAttribute(op.Key, op.Value);
					}
				}
			}

			let ws = null;
			function send(msg) {
				if (ws && ws.readyState === WebSocket.OPEN) {
					ws.send(JSON.stringify(msg));
				}
			}

			function connect() {
				const scheme = location.protocol === "https:" ? "wss://" : "ws://";
				ws = new WebSocket(scheme + location.host + "/ws");
				ws.onopen = function () {
					console.log("Web socket opened");
				};
				ws.onerror = function (event) {
					console.log("WebSocket error: ", event);
				};
				ws.onclose = function () {
					setTimeout(connect, 2000);
				};
				ws.onmessage = function (event) {
					const frame = JSON.parse(event.data);
					if (frame.reset) {
						clearLayers();
					}
					for (const op of frame.paints || []) {
						applyPaint(op);
					}
					for (const update of frame.updates || []) {
						applyUpdate(update);
					}
				};
			}
			connect();

			const overlay = document.getElementById("robot-overlay");
			function pointer(type, event) {
				const rect = overlay.getBoundingClientRect();
				send({type: type, x: event.clientX - rect.left, y: width - (event.clientY - rect.top)});
			}
			overlay.addEventListener("mousedown", function (e) { pointer("mouse_down", e); });
			overlay.addEventListener("mousemove", function (e) { pointer("mouse_move", e); });
			window.addEventListener("mouseup", function () { send({type: "mouse_up"}); });

			document.getElementById("plan").onclick = function () { send({type: "plan"}); };
			document.getElementById("clear-goal").onclick = function () { send({type: "clear_goal"}); };
			document.getElementById("toggle-field").onclick = function () { send({type: "toggle_field"}); };
			document.getElementById("` + scene.EleAlgo + `").onchange = function (e) {
				send({type: "select_algo", value: e.target.value});
			};
			document.getElementById("speed").onchange = function (e) {
				send({type: "set_speed", value: e.target.value});
			};
			document.getElementById("map-file").onchange = function (e) {
				const file = e.target.files[0];
				if (!file) {
					return;
				}
				const body = new FormData();
				body.append("file", file);
				fetch("/api/map", {method: "POST", body: body}).then(function (resp) {
					if (!resp.ok) {
						resp.text().then(function (text) { alert("Map upload failed: " + text); });
					}
				});
			};
			document.addEventListener("visibilitychange", function () {
				if (!document.hidden) {
					send({type: "resync"});
				}
			});
		</script>
	</body>
</html>
`)
}
