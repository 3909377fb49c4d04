package sandbox

// runnerScript applies the advisory limits inside the interpreter and then
// runs the user script as __main__.
//
// argv: runner.py <script> <memory bytes> <allow network 0|1> <allow write 0|1>
const runnerScript = `import builtins
import io
import os
import runpy
import sys

_script = sys.argv[1]
_memory = int(sys.argv[2])
_network = sys.argv[3] == "1"
_write = sys.argv[4] == "1"

if _memory > 0:
    try:
        import resource
        resource.setrlimit(resource.RLIMIT_AS, (_memory, _memory))
    except Exception:
        pass

if not _network:
    import socket

    def _network_disabled(*args, **kwargs):
        raise PermissionError("network access is disabled in this sandbox")

    socket.socket.connect = _network_disabled
    socket.socket.connect_ex = _network_disabled
    socket.create_connection = _network_disabled
    socket.getaddrinfo = _network_disabled

if not _write:
    _open = builtins.open

    def _read_only_open(file, mode="r", *args, **kwargs):
        if any(flag in mode for flag in "wax+"):
            raise PermissionError("file writes are disabled in this sandbox")
        return _open(file, mode, *args, **kwargs)

    builtins.open = _read_only_open
    io.open = _read_only_open

sys.argv = [_script]
sys.path[0] = os.path.dirname(os.path.abspath(_script))
runpy.run_path(_script, run_name="__main__")
`
