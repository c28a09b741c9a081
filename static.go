package main

// indexHTML is the embedded single-page interface. It talks to /ws and is
// intentionally framework-free so the binary ships self-contained.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>tame</title>
<style>
  :root { --accent: #4f8ef7; --bg: #14161a; --panel: #1e2127; --text: #e8eaed; --dim: #9aa0a6; }
  * { box-sizing: border-box; }
  body { margin: 0; font-family: system-ui, sans-serif; background: var(--bg); color: var(--text); }
  main { max-width: 560px; margin: 2rem auto; padding: 0 1rem; }
  h1 { font-size: 1.3rem; font-weight: 600; }
  .panel { background: var(--panel); border-radius: 8px; padding: 1rem 1.25rem; margin-bottom: 1rem; }
  .row { display: flex; justify-content: space-between; align-items: center; margin: .5rem 0; }
  .badge { padding: .15rem .6rem; border-radius: 999px; font-size: .8rem; text-transform: uppercase; }
  .badge.normal { background: #1d3a26; color: #7ee2a8; }
  .badge.limiting { background: #3a2a1d; color: #f7b24f; }
  .badge.override { background: #1d2c3a; color: #7ec4e2; }
  .badge.idle { background: #2a2a2a; color: var(--dim); }
  .meter { height: 10px; background: #0c0d10; border-radius: 5px; overflow: hidden; position: relative; }
  .meter > div { height: 100%; width: 0; background: var(--accent); transition: width 80ms linear; }
  .meter .cap-mark { position: absolute; top: 0; bottom: 0; width: 2px; background: #f25555; }
  .degraded { background: #3a1d1d; color: #f28b8b; padding: .75rem 1rem; border-radius: 8px; margin-bottom: 1rem; display: none; }
  input[type=range] { width: 100%; accent-color: var(--accent); }
  label { color: var(--dim); font-size: .85rem; }
  .dim { color: var(--dim); font-size: .8rem; }
  button { background: var(--accent); color: #fff; border: 0; border-radius: 6px; padding: .4rem 1rem; cursor: pointer; }
  button.off { background: #3a3d44; }
  footer { color: var(--dim); font-size: .75rem; text-align: center; margin: 2rem 0 1rem; }
</style>
</head>
<body>
<main>
  <h1>tame</h1>

  <div id="degraded" class="degraded">Volume control is unavailable. Toggle the limiter to retry.</div>

  <div class="panel">
    <div class="row">
      <span id="state" class="badge idle">idle</span>
      <button id="toggle" class="off">Enable</button>
    </div>
    <div class="row"><label>Output level</label><span id="levelText" class="dim"></span></div>
    <div class="meter"><div id="levelBar"></div><div id="capMark" class="cap-mark"></div></div>
    <div class="row"><label>System volume</label><span id="volText" class="dim"></span></div>
    <div class="meter"><div id="volBar"></div></div>
  </div>

  <div class="panel">
    <div class="row"><label for="cap">Volume cap</label><span id="capText" class="dim"></span></div>
    <input id="cap" type="range" min="1" max="100" step="1">
    <div id="override" class="dim"></div>
  </div>

  <footer>tame {{.Version}} &middot; &copy; {{.Year}}</footer>
</main>
<script>
(function () {
  var ws, enabled = false, capPercent = 20, capDragging = false;

  function $(id) { return document.getElementById(id); }

  function connect() {
    ws = new WebSocket("ws://" + location.host + "/ws");
    ws.onmessage = function (ev) {
      var msg = JSON.parse(ev.data);
      if (msg.type === "status") onStatus(msg);
      else if (msg.type === "levels") onLevels(msg);
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }

  function send(type, data) {
    if (ws && ws.readyState === WebSocket.OPEN) {
      ws.send(JSON.stringify({ type: type, data: data || {} }));
    }
  }

  function onStatus(msg) {
    var lim = msg.limiter;
    enabled = lim.enabled;
    capPercent = msg.cap_percent;

    var badge = $("state");
    badge.textContent = lim.state;
    badge.className = "badge " + lim.state;

    var toggle = $("toggle");
    toggle.textContent = enabled ? "Disable" : "Enable";
    toggle.className = enabled ? "" : "off";

    $("degraded").style.display = lim.degraded ? "block" : "none";
    $("override").textContent = lim.override_remaining_ms
      ? "Paused after manual change, " + Math.ceil(lim.override_remaining_ms / 1000) + "s left"
      : "";

    if (!capDragging) {
      $("cap").value = capPercent;
      $("capText").textContent = capPercent.toFixed(0) + "%";
    }
    $("capMark").style.left = capPercent + "%";
  }

  function onLevels(msg) {
    var pct = Math.min(msg.peak * 100, 100);
    $("levelBar").style.width = pct + "%";
    $("levelText").textContent = pct.toFixed(0) + "%";
    var vol = Math.min(msg.volume * 100, 100);
    $("volBar").style.width = vol + "%";
    $("volText").textContent = vol.toFixed(0) + "%";
  }

  $("toggle").addEventListener("click", function () {
    send("limiter/update", { enabled: !enabled });
  });

  $("cap").addEventListener("input", function () {
    capDragging = true;
    $("capText").textContent = this.value + "%";
  });
  $("cap").addEventListener("change", function () {
    capDragging = false;
    send("limiter/update", { cap_percent: Number(this.value) });
  });

  connect();
})();
</script>
</body>
</html>
`
